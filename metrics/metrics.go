// Package metrics exports Prometheus counters and histograms for graph runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smallnest/threadgraph/graph"
	"github.com/smallnest/threadgraph/state"
	"github.com/smallnest/threadgraph/tool"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadgraph_node_executions_total",
			Help: "Node executions by node and outcome.",
		}, []string{"node", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadgraph_node_duration_seconds",
			Help:    "Node execution latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadgraph_tool_calls_total",
			Help: "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadgraph_tool_duration_seconds",
			Help:    "Tool invocation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadgraph_runs_total",
			Help: "Completed runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadgraph_run_duration_seconds",
			Help:    "End-to-end run latency.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	reg.MustRegister(m.nodeExecutions, m.nodeDuration, m.toolCalls, m.toolDuration, m.runs, m.runDuration)
	return m
}

// NodeListener records node completions and failures.
func (m *Metrics) NodeListener() graph.NodeListener[state.ConversationState] {
	return graph.NodeListenerFunc[state.ConversationState](func(_ context.Context, info graph.NodeEventInfo[state.ConversationState]) {
		if m == nil {
			return
		}
		switch info.Event {
		case graph.NodeEventComplete:
			m.nodeExecutions.WithLabelValues(info.Node, "ok").Inc()
			m.nodeDuration.WithLabelValues(info.Node).Observe(info.Duration.Seconds())
		case graph.NodeEventError:
			m.nodeExecutions.WithLabelValues(info.Node, "error").Inc()
			m.nodeDuration.WithLabelValues(info.Node).Observe(info.Duration.Seconds())
		}
	})
}

// ObserveTool records one dispatched tool call.
func (m *Metrics) ObserveTool(res tool.Result) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(res.Name, string(res.Outcome)).Inc()
	m.toolDuration.WithLabelValues(res.Name).Observe(res.Duration.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
