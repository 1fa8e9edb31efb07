package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/flowpilot/internal/executor"
	"github.com/mohammad-safakhou/flowpilot/internal/planner"
	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

const namespace = "flowpilot"

// unknownToolLabel replaces caller-supplied tool names so they cannot grow label cardinality.
const unknownToolLabel = "unknown"

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry     *prometheus.Registry
	plans        *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
}

// NewMetrics registers the collectors on a dedicated registry along with the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_generated_total",
			Help:      "Plans returned by the generator, by source and failure kind.",
		}, []string{"source", "kind"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_executed_total",
			Help:      "Dispatched plan steps, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Connector dispatch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"tool"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished plan executions, by whether a connector halted them.",
		}, []string{"halted"}),
	}
	m.registry.MustRegister(
		m.plans, m.steps, m.stepDuration, m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePlan counts a generation. It is meant to be passed to planner.WithObserver.
func (m *Metrics) ObservePlan(g planner.Generation) {
	kind := "none"
	if g.Failure != nil {
		kind = string(g.Failure.Kind)
	}
	m.plans.WithLabelValues(string(g.Source), kind).Inc()
}

// ExecutorMetrics adapts the collectors to the executor's callback hooks.
func (m *Metrics) ExecutorMetrics() executor.Metrics {
	return executor.Metrics{
		StepDuration: func(ctx context.Context, tool string, outcome workflow.Outcome, d time.Duration) {
			if outcome == workflow.OutcomeUnsupportedTool {
				tool = unknownToolLabel
			}
			m.steps.WithLabelValues(tool, string(outcome)).Inc()
			m.stepDuration.WithLabelValues(tool).Observe(d.Seconds())
		},
		RunFinished: func(ctx context.Context, result workflow.Result) {
			m.runs.WithLabelValues(strconv.FormatBool(result.Halted())).Inc()
		},
	}
}
