package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync/atomic"
	"time"
)

// PrometheusHandler serves the counters in Prometheus text exposition format.
// Mount it at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"smilecare_turns_total", "Total conversation turns handled", "counter", atomic.LoadUint64(&m.metrics.TurnsTotal)},
			{"smilecare_turns_success_total", "Turns that produced a reply", "counter", atomic.LoadUint64(&m.metrics.TurnsSuccess)},
			{"smilecare_turns_failed_total", "Turns that ended in error", "counter", atomic.LoadUint64(&m.metrics.TurnsFailed)},
			{"smilecare_tool_calls_total", "Tool dispatch attempts", "counter", atomic.LoadUint64(&m.metrics.ToolCallsTotal)},
			{"smilecare_tool_calls_failed_total", "Tool dispatches that returned an error result", "counter", atomic.LoadUint64(&m.metrics.ToolCallsFailed)},
			{"smilecare_audit_failures_total", "Audit records that could not be written", "counter", atomic.LoadUint64(&m.metrics.AuditFailures)},
			{"smilecare_model_calls_total", "Inference requests sent to the model", "counter", atomic.LoadUint64(&m.metrics.ModelCallsTotal)},
			{"smilecare_model_tokens_used_total", "Tokens reported by the model", "counter", atomic.LoadUint64(&m.metrics.ModelTokensUsed)},
			{"smilecare_turn_latency_avg_ms", "Average turn latency in milliseconds", "gauge", m.avgTurnLatencyMs()},
			{"smilecare_uptime_seconds", "Process uptime in seconds", "gauge", time.Since(m.metrics.StartTime).Seconds()},
			{"smilecare_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"smilecare_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		rejected, denied := m.labelled()
		writeLabelled(w, "smilecare_inputs_rejected_total", "Inputs blocked by the sanitizer", "class", rejected)
		writeLabelled(w, "smilecare_tool_calls_denied_total", "Tool calls refused by the authorization gate", "tool", denied)
	})
}

func writeLabelled(w http.ResponseWriter, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
	fmt.Fprintln(w)
}
