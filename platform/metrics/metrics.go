// Package metrics provides prometheus instrumentation for the automation core.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
	"strings"
)

// Metrics bundles the counters the workflow engine, alert manager and
// orchestrator report into getSystemStatus and /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	WorkflowDispatches  *prometheus.CounterVec
	WorkflowSuppressed  prometheus.Counter
	ActionFailures      *prometheus.CounterVec
	AlertsSent          *prometheus.CounterVec
	AlertsSuppressed    prometheus.Counter
	SweepErrors         *prometheus.CounterVec
	StageTransitions    *prometheus.CounterVec
	DocumentCompletions prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		WorkflowDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_workflow_dispatches_total",
			Help: "Workflow dispatch attempts by workflow id and outcome.",
		}, []string{"workflow", "outcome"}),
		WorkflowSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "automation_workflow_suppressed_total",
			Help: "Workflow dispatches suppressed by the cooldown ledger.",
		}),
		ActionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_action_failures_total",
			Help: "Failed workflow actions by action type.",
		}, []string{"action"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_alerts_sent_total",
			Help: "Alerts dispatched by severity.",
		}, []string{"severity"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "automation_alerts_suppressed_total",
			Help: "Alerts suppressed by the cooldown window.",
		}),
		SweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_sweep_errors_total",
			Help: "Orchestrator sweep failures by sweep name.",
		}, []string{"sweep"}),
		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_stage_transitions_total",
			Help: "Pipeline stage transitions by division.",
		}, []string{"division"}),
		DocumentCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "automation_document_completions_total",
			Help: "Upload tokens whose required document set was completed.",
		}),
	}

	reg.MustRegister(
		m.WorkflowDispatches,
		m.WorkflowSuppressed,
		m.ActionFailures,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.SweepErrors,
		m.StageTransitions,
		m.DocumentCompletions,
	)

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Snapshot reads the current automation counter values, summed across label
// sets. Runtime collectors are excluded.
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.Registry.Gather()
	if err != nil {
		return out
	}
	for _, fam := range families {
		if !strings.HasPrefix(fam.GetName(), "automation_") {
			continue
		}
		var total float64
		for _, metric := range fam.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
		out[fam.GetName()] = total
	}
	return out
}
