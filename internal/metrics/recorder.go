// Package metrics exports graph activity as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"commerce-agent/internal/domain"
)

const namespace = "commerce_agent"

// Recorder implements agent.Observer.
type Recorder struct {
	nodeVisits *prometheus.CounterVec
	toolCalls  *prometheus.CounterVec
	requests   *prometheus.CounterVec
	verdicts   *prometheus.CounterVec
	warnings   *prometheus.CounterVec
	iterations prometheus.Histogram
	latency    *prometheus.HistogramVec
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		nodeVisits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "node_visits_total",
			Help:      "Graph node executions by node.",
		}, []string{"node"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool dispatches by tool and outcome.",
		}, []string{"tool", "ok"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed requests by intent and intent source.",
		}, []string{"intent", "source"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "verdicts_total",
			Help:      "Cancellation verdicts by status and eligibility.",
		}, []string{"status", "eligible"}),
		warnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trace_warnings_total",
			Help:      "Trace warnings by category.",
		}, []string{"category"}),
		iterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "loop_iterations",
			Help:      "Reasoning loop iterations per request.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end graph latency by intent.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"intent"}),
	}
}

func (r *Recorder) NodeVisited(node string) {
	r.nodeVisits.WithLabelValues(node).Inc()
}

func (r *Recorder) ToolDispatched(tool string, ok bool) {
	r.toolCalls.WithLabelValues(tool, strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) RequestFinished(trace domain.Trace, elapsed time.Duration) {
	intent := string(trace.Intent)
	r.requests.WithLabelValues(intent, trace.IntentSource).Inc()
	r.iterations.Observe(float64(trace.Iterations))
	r.latency.WithLabelValues(intent).Observe(elapsed.Seconds())
	if v := trace.PolicyVerdict; v != nil {
		r.verdicts.WithLabelValues(string(v.Status), strconv.FormatBool(v.Eligible)).Inc()
	}
	for _, w := range trace.Warnings {
		r.warnings.WithLabelValues(string(w.Category)).Inc()
	}
}
