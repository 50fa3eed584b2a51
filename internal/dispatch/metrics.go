// In file: internal/dispatch/metrics.go
package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

// Metrics exports dispatcher activity as Prometheus series.
type Metrics struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	connected *prometheus.GaugeVec
}

var _ Recorder = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgateway_tool_calls_total",
				Help: "Settled tool calls by tool, serving source and outcome.",
			},
			[]string{"tool", "source", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgateway_tool_call_duration_seconds",
				Help:    "Wall-clock duration of attempted tool calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool", "source"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgateway_fallbacks_total",
				Help: "Hand-offs from one adapter to the next in a tool's chain.",
			},
			[]string{"tool"},
		),
		connected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolgateway_hosted_connected",
				Help: "1 while a hosted backend is connected, 0 otherwise.",
			},
			[]string{"backend"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration, m.fallbacks, m.connected)
	}
	return m
}

// unknownToolLabel stands in for names that did not resolve.
const unknownToolLabel = "unknown"

func (m *Metrics) RecordCall(_ context.Context, res tools.ToolCallResult) {
	outcome := "success"
	if !res.Outcome.Success {
		outcome = string(res.Outcome.Kind)
	}
	tool := res.ToolName
	if res.Outcome.Kind == tools.KindUnknownTool {
		tool = unknownToolLabel
	}
	source := string(res.Source)
	if source == "" {
		source = "none"
	}
	m.calls.WithLabelValues(tool, source, outcome).Inc()
	if res.Source != "" {
		m.duration.WithLabelValues(tool, source).Observe((time.Duration(res.ElapsedMs) * time.Millisecond).Seconds())
	}
}

func (m *Metrics) RecordFallback(_ context.Context, tool string, _, _ tools.Source) {
	m.fallbacks.WithLabelValues(tool).Inc()
}

// SetConnected matches transport.Hosted's OnStateChange hook.
func (m *Metrics) SetConnected(backend string, s transport.ConnectionState) {
	v := 0.0
	if s == transport.Connected {
		v = 1
	}
	m.connected.WithLabelValues(backend).Set(v)
}
