package monitoring

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
)

// MetricsHook instruments orchestrator turns with Monitor counters.
// Register it with Orchestrator.SetHooks; it holds no per-turn state
// and is safe for concurrent turns.
type MetricsHook struct {
	service.NoOpHook
	monitor *Monitor
}

// NewMetricsHook creates a metrics-collecting turn hook.
func NewMetricsHook(monitor *Monitor) *MetricsHook {
	return &MetricsHook{monitor: monitor}
}

var _ service.TurnHook = (*MetricsHook)(nil)

func (h *MetricsHook) OnTurnStart(_ context.Context, _ valueobject.Caller) {
	h.monitor.IncTurnTotal()
}

func (h *MetricsHook) OnInputRejected(_ context.Context, class string) {
	h.monitor.IncInputRejected(class)
}

func (h *MetricsHook) BeforeModelCall(_ context.Context, _ *service.LLMRequest, _ int) {
	h.monitor.IncModelCall()
}

func (h *MetricsHook) AfterModelCall(_ context.Context, resp *service.LLMResponse, _ int) {
	if resp != nil {
		h.monitor.AddTokensUsed(resp.TokensUsed)
	}
}

func (h *MetricsHook) AfterToolCall(_ context.Context, _ string, result tool.Result, err error) {
	h.monitor.IncToolCallTotal()
	if err != nil || result.IsError() {
		h.monitor.IncToolCallFailed()
	}
}

func (h *MetricsHook) OnError(_ context.Context, _ error) {
	h.monitor.IncTurnFailed()
}

func (h *MetricsHook) OnComplete(_ context.Context, _ *service.TurnResult) {
	h.monitor.IncTurnSuccess()
}

// OnStateChange records turn latency once the turn reaches a terminal state.
func (h *MetricsHook) OnStateChange(_, to service.TurnState, snap service.TurnSnapshot) {
	if to == service.StateDone || to == service.StateError {
		h.monitor.RecordTurnLatency(snap.Elapsed)
	}
}
