package monitoring

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics 网关指标
type Metrics struct {
	// 对话轮次
	TurnsTotal   uint64
	TurnsSuccess uint64
	TurnsFailed  uint64

	// 输入清洗拦截
	InputsRejected uint64

	// 工具调度
	ToolCallsTotal  uint64
	ToolCallsDenied uint64
	ToolCallsFailed uint64
	AuditFailures   uint64

	// 模型调用
	ModelCallsTotal uint64
	ModelTokensUsed uint64

	// 轮次延迟 (纳秒)
	TurnLatencySum   uint64
	TurnLatencyCount uint64

	StartTime time.Time
}

// Monitor 指标监控器
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger

	mu        sync.Mutex
	rejected  map[string]uint64 // per pattern class
	deniedFor map[string]uint64 // per tool
}

// NewMonitor 创建监控器
func NewMonitor(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		metrics:   &Metrics{StartTime: time.Now()},
		logger:    logger,
		rejected:  make(map[string]uint64),
		deniedFor: make(map[string]uint64),
	}
}

// 计数方法
func (m *Monitor) IncTurnTotal()      { atomic.AddUint64(&m.metrics.TurnsTotal, 1) }
func (m *Monitor) IncTurnSuccess()    { atomic.AddUint64(&m.metrics.TurnsSuccess, 1) }
func (m *Monitor) IncTurnFailed()     { atomic.AddUint64(&m.metrics.TurnsFailed, 1) }
func (m *Monitor) IncToolCallTotal()  { atomic.AddUint64(&m.metrics.ToolCallsTotal, 1) }
func (m *Monitor) IncToolCallFailed() { atomic.AddUint64(&m.metrics.ToolCallsFailed, 1) }
func (m *Monitor) IncAuditFailure()   { atomic.AddUint64(&m.metrics.AuditFailures, 1) }
func (m *Monitor) IncModelCall()      { atomic.AddUint64(&m.metrics.ModelCallsTotal, 1) }

func (m *Monitor) AddTokensUsed(n int) {
	if n > 0 {
		atomic.AddUint64(&m.metrics.ModelTokensUsed, uint64(n))
	}
}

// IncInputRejected 记录一次被清洗器拦截的输入
func (m *Monitor) IncInputRejected(class string) {
	atomic.AddUint64(&m.metrics.InputsRejected, 1)
	m.mu.Lock()
	m.rejected[class]++
	m.mu.Unlock()
}

// IncToolDenied 记录一次授权拒绝. 拒绝原因只写日志, 不进入指标标签.
func (m *Monitor) IncToolDenied(toolName, reason string) {
	atomic.AddUint64(&m.metrics.ToolCallsDenied, 1)
	m.mu.Lock()
	m.deniedFor[toolName]++
	m.mu.Unlock()
	m.logger.Debug("Tool call denied", zap.String("tool", toolName), zap.String("reason", reason))
}

func (m *Monitor) RecordTurnLatency(d time.Duration) {
	atomic.AddUint64(&m.metrics.TurnLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.TurnLatencyCount, 1)
}

func (m *Monitor) avgTurnLatencyMs() float64 {
	count := atomic.LoadUint64(&m.metrics.TurnLatencyCount)
	if count == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.metrics.TurnLatencySum)) / float64(count) / 1e6
}

// labelled 返回按标签分组计数的副本
func (m *Monitor) labelled() (rejected, denied map[string]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rejected = make(map[string]uint64, len(m.rejected))
	for k, v := range m.rejected {
		rejected[k] = v
	}
	denied = make(map[string]uint64, len(m.deniedFor))
	for k, v := range m.deniedFor {
		denied[k] = v
	}
	return rejected, denied
}

// GetStats 获取当前统计
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"uptime_seconds":    time.Since(m.metrics.StartTime).Seconds(),
		"turns_total":       atomic.LoadUint64(&m.metrics.TurnsTotal),
		"turns_success":     atomic.LoadUint64(&m.metrics.TurnsSuccess),
		"turns_failed":      atomic.LoadUint64(&m.metrics.TurnsFailed),
		"inputs_rejected":   atomic.LoadUint64(&m.metrics.InputsRejected),
		"tool_calls_total":  atomic.LoadUint64(&m.metrics.ToolCallsTotal),
		"tool_calls_denied": atomic.LoadUint64(&m.metrics.ToolCallsDenied),
		"tool_calls_failed": atomic.LoadUint64(&m.metrics.ToolCallsFailed),
		"audit_failures":    atomic.LoadUint64(&m.metrics.AuditFailures),
		"model_calls_total": atomic.LoadUint64(&m.metrics.ModelCallsTotal),
		"model_tokens_used": atomic.LoadUint64(&m.metrics.ModelTokensUsed),
		"avg_turn_ms":       m.avgTurnLatencyMs(),
		"memory_mb":         float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":        runtime.NumGoroutine(),
	}
}
