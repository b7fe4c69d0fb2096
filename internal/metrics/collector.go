// Package metrics exposes Prometheus metrics for the inspection engine.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sitewatch/inspection-engine/internal/database"
)

// StatsSource supplies aggregate fault counts. Implemented by
// database.FaultRepository.
type StatsSource interface {
	GetStats(ctx context.Context, overdueCutoff time.Time) (*database.FaultStats, error)
}

// Collector owns the service metrics. Counters are bumped inline by the
// handlers and scheduler; gauges are refreshed periodically from the store.
type Collector struct {
	logger       *slog.Logger
	stats        StatsSource
	overdueAfter time.Duration

	inspectionsSubmitted prometheus.Counter
	inspectionsRejected  prometheus.Counter
	validationErrors     *prometheus.CounterVec
	faultsCreated        *prometheus.CounterVec
	faultTransitions     *prometheus.CounterVec
	escalationEmails     prometheus.Counter
	updateConflicts      prometheus.Counter

	faultsByStatus *prometheus.GaugeVec
	faultsOverdue  prometheus.Gauge
	faultsCritical prometheus.Gauge
}

// NewCollector creates and registers the service metrics.
func NewCollector(stats StatsSource, overdueAfter time.Duration, logger *slog.Logger) *Collector {
	return &Collector{
		logger:       logger,
		stats:        stats,
		overdueAfter: overdueAfter,

		inspectionsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspection_engine_inspections_submitted_total",
			Help: "Total inspections committed",
		}),
		inspectionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspection_engine_inspections_rejected_total",
			Help: "Total inspection submissions rejected by validation or linkage",
		}),
		validationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inspection_engine_validation_errors_total",
			Help: "Field validation errors by code",
		}, []string{"code"}),
		faultsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inspection_engine_faults_created_total",
			Help: "Faults created by type",
		}, []string{"type"}),
		faultTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inspection_engine_fault_transitions_total",
			Help: "Fault status transitions by target status",
		}, []string{"to"}),
		escalationEmails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspection_engine_escalation_emails_total",
			Help: "Escalation emails dispatched",
		}),
		updateConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspection_engine_fault_update_conflicts_total",
			Help: "Fault updates rejected by the optimistic lock",
		}),

		faultsByStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inspection_engine_faults",
			Help: "Current fault count by status",
		}, []string{"status"}),
		faultsOverdue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inspection_engine_faults_overdue",
			Help: "Current count of overdue faults",
		}),
		faultsCritical: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inspection_engine_faults_critical",
			Help: "Current count of critical faults",
		}),
	}
}

// RecordSubmission counts a committed inspection.
func (c *Collector) RecordSubmission() {
	c.inspectionsSubmitted.Inc()
}

// RecordRejection counts a rejected submission.
func (c *Collector) RecordRejection() {
	c.inspectionsRejected.Inc()
}

// RecordValidationError counts one field error by code.
func (c *Collector) RecordValidationError(code string) {
	c.validationErrors.WithLabelValues(code).Inc()
}

// RecordFaultCreated counts a created fault by type.
func (c *Collector) RecordFaultCreated(faultType database.FaultType) {
	c.faultsCreated.WithLabelValues(string(faultType)).Inc()
}

// RecordTransition counts a status transition by target.
func (c *Collector) RecordTransition(to database.FaultStatus) {
	c.faultTransitions.WithLabelValues(string(to)).Inc()
}

// RecordEscalationEmail counts a dispatched escalation email.
func (c *Collector) RecordEscalationEmail() {
	c.escalationEmails.Inc()
}

// RecordConflict counts an optimistic-lock rejection.
func (c *Collector) RecordConflict() {
	c.updateConflicts.Inc()
}

// Refresh pulls aggregate fault counts into the gauges.
func (c *Collector) Refresh(ctx context.Context) error {
	stats, err := c.stats.GetStats(ctx, time.Now().Add(-c.overdueAfter))
	if err != nil {
		return err
	}

	c.faultsByStatus.WithLabelValues(string(database.FaultOpen)).Set(float64(stats.Open))
	c.faultsByStatus.WithLabelValues(string(database.FaultInTreatment)).Set(float64(stats.InTreatment))
	c.faultsByStatus.WithLabelValues(string(database.FaultClosed)).Set(float64(stats.Closed))
	c.faultsOverdue.Set(float64(stats.Overdue))
	c.faultsCritical.Set(float64(stats.Critical))

	c.logger.Debug("Fault gauges refreshed",
		"open", stats.Open,
		"in_treatment", stats.InTreatment,
		"closed", stats.Closed,
		"overdue", stats.Overdue)
	return nil
}
