package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitewatch/inspection-engine/internal/database"
)

// EscalationService is the slice of the orchestrator the escalation
// processor needs.
type EscalationService interface {
	PollEscalations(ctx context.Context, now time.Time) ([]*database.Fault, error)
	RecordEmailSent(ctx context.Context, faultID string, sentAt time.Time) error
}

// EmailDispatcher sends one escalation email.
type EmailDispatcher interface {
	SendEscalation(ctx context.Context, fault *database.Fault, now time.Time) error
}

// EscalationEventSink emits escalation events. May be nil.
type EscalationEventSink interface {
	FaultEscalated(ctx context.Context, fault *database.Fault)
}

// EscalationMetrics counts dispatched escalation emails. May be nil.
type EscalationMetrics interface {
	RecordEscalationEmail()
}

// EscalationProcessorHandler polls for faults whose escalation email is due,
// dispatches the emails and records the send. The record is what gates the
// next reminder; a fault whose email fails stays due and is retried on the
// next poll.
type EscalationProcessorHandler struct {
	service    EscalationService
	dispatcher EmailDispatcher
	events     EscalationEventSink
	metrics    EscalationMetrics
	logger     *slog.Logger
}

// NewEscalationProcessorHandler creates the escalation processor.
func NewEscalationProcessorHandler(service EscalationService, dispatcher EmailDispatcher, events EscalationEventSink, metrics EscalationMetrics, logger *slog.Logger) *EscalationProcessorHandler {
	return &EscalationProcessorHandler{
		service:    service,
		dispatcher: dispatcher,
		events:     events,
		metrics:    metrics,
		logger:     logger,
	}
}

// Execute runs one escalation poll.
func (h *EscalationProcessorHandler) Execute(ctx context.Context) error {
	now := time.Now()

	due, err := h.service.PollEscalations(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to poll escalations: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	h.logger.Info("Processing escalations", "due", len(due))

	var failed int
	for _, fault := range due {
		if err := h.dispatcher.SendEscalation(ctx, fault, now); err != nil {
			failed++
			continue
		}

		if err := h.service.RecordEmailSent(ctx, fault.ID, now); err != nil {
			h.logger.Error("Failed to record escalation email, fault will re-signal",
				"fault_id", fault.ID, "error", err)
			failed++
			continue
		}

		if h.metrics != nil {
			h.metrics.RecordEscalationEmail()
		}
		if h.events != nil {
			h.events.FaultEscalated(ctx, fault)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d escalations failed", failed, len(due))
	}
	return nil
}

// Name returns the handler name.
func (h *EscalationProcessorHandler) Name() string {
	return "Escalation Processor"
}

// GaugeRefresher refreshes store-derived gauges.
type GaugeRefresher interface {
	Refresh(ctx context.Context) error
}

// MetricsRefreshHandler refreshes the fault gauges from the store.
type MetricsRefreshHandler struct {
	collector GaugeRefresher
	logger    *slog.Logger
}

// NewMetricsRefreshHandler creates the metrics refresh handler.
func NewMetricsRefreshHandler(collector GaugeRefresher, logger *slog.Logger) *MetricsRefreshHandler {
	return &MetricsRefreshHandler{collector: collector, logger: logger}
}

// Execute refreshes the gauges once.
func (h *MetricsRefreshHandler) Execute(ctx context.Context) error {
	if err := h.collector.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh metrics: %w", err)
	}
	return nil
}

// Name returns the handler name.
func (h *MetricsRefreshHandler) Name() string {
	return "Metrics Refresh"
}
