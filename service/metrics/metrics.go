package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ledger Metrics
	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	committedAmount    *prometheus.CounterVec
	badgeChangesTotal  *prometheus.CounterVec
	provisionsTotal    *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_submissions_total",
				Help: "Total number of transaction submissions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_submission_duration_seconds",
				Help:    "Duration of transaction submissions in seconds, including journal writes",
				Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"outcome"},
		),
		committedAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_committed_amount_total",
				Help: "Sum of committed transaction amounts by kind",
			},
			[]string{"kind", "cross_chain"},
		),
		badgeChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_badge_changes_total",
				Help: "Total number of purity badge change attempts",
			},
			[]string{"status", "outcome"},
		),
		provisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_provisions_total",
				Help: "Total number of balance provisioning attempts",
			},
			[]string{"outcome"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"event", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"event"},
		),
	}
}

// Ledger metric helpers

// RecordSubmission records a transaction submission and its outcome
// ("committed" or a rejection reason).
func (m *Metrics) RecordSubmission(kind, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(kind, outcome).Inc()
	m.submissionDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordCommittedAmount adds a committed amount to the running total.
func (m *Metrics) RecordCommittedAmount(kind string, crossChain bool, amount uint64) {
	if m == nil {
		return
	}
	m.committedAmount.WithLabelValues(kind, boolLabel(crossChain)).Add(float64(amount))
}

// RecordBadgeChange records a purity badge change attempt.
func (m *Metrics) RecordBadgeChange(status bool, outcome string) {
	if m == nil {
		return
	}
	label := "revoked"
	if status {
		label = "granted"
	}
	m.badgeChangesTotal.WithLabelValues(label, outcome).Inc()
}

// RecordProvision records a provisioning attempt.
func (m *Metrics) RecordProvision(outcome string) {
	if m == nil {
		return
	}
	m.provisionsTotal.WithLabelValues(outcome).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(event, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(event, status).Inc()
	m.natsPublishDuration.WithLabelValues(event).Observe(duration)
}

// Timer is a helper for timing operations.
// Usage:
//
//	defer metrics.Timer(time.Now(), func(duration float64) {
//	    m.RecordSomething(duration)
//	})()
func Timer(start time.Time, recordFunc func(float64)) func() {
	return func() {
		recordFunc(time.Since(start).Seconds())
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
