package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit lifecycle engine. All methods
// are nil-safe so services can run without metrics wired.
type Metrics struct {
	ProcessesCreated *prometheus.CounterVec
	Assignments      *prometheus.CounterVec
	VerdictOutcomes  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		ProcessesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_processes_created_total",
			Help: "Audit processes created by audit type",
		}, []string{"audit_type"}),

		Assignments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_assignments_total",
			Help: "Assignment attempts by outcome",
		}, []string{"outcome"}), // outcome: assigned, unassigned, skipped_*

		VerdictOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_verdicts_total",
			Help: "Completed audit verdicts by verdict and audit type",
		}, []string{"verdict", "audit_type"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditflow_operation_duration_seconds",
			Help:    "Duration of engine operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncProcessCreated(auditType string) {
	if m != nil {
		m.ProcessesCreated.WithLabelValues(auditType).Inc()
	}
}

func (m *Metrics) IncAssignment(outcome string) {
	if m != nil {
		m.Assignments.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncVerdict(verdict, auditType string) {
	if m != nil {
		m.VerdictOutcomes.WithLabelValues(verdict, auditType).Inc()
	}
}

func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
