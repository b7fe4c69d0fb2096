// Package events publishes domain events to Kafka after state is committed.
// Publishing is best effort: a broker failure is logged, never surfaced to
// the request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sitewatch/inspection-engine/internal/config"
	"github.com/sitewatch/inspection-engine/internal/database"
)

// InspectionSubmittedEvent is emitted when an inspection commits.
type InspectionSubmittedEvent struct {
	InspectionID  string               `json:"inspection_id"`
	Site          string               `json:"site"`
	SchemaID      string               `json:"schema_id"`
	SchemaVersion int                  `json:"schema_version"`
	Inspector     string               `json:"inspector"`
	SubmittedAt   time.Time            `json:"submitted_at"`
	FaultLinks    []database.FaultLink `json:"fault_links,omitempty"`
}

// FaultEvent is emitted on fault creation, status change and escalation.
type FaultEvent struct {
	FaultID        string               `json:"fault_id"`
	Site           string               `json:"site"`
	Type           database.FaultType   `json:"type"`
	Status         database.FaultStatus `json:"status"`
	PreviousStatus database.FaultStatus `json:"previous_status,omitempty"`
	IsCritical     bool                 `json:"is_critical"`
	ReportedTime   time.Time            `json:"reported_time"`
	Timestamp      time.Time            `json:"timestamp"`
}

// Publisher writes domain events to the configured topics.
type Publisher struct {
	config config.KafkaConfig
	logger *slog.Logger
	writer *kafka.Writer
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &Publisher{config: cfg, logger: logger, writer: writer}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// InspectionSubmitted emits an inspection-submitted event.
func (p *Publisher) InspectionSubmitted(ctx context.Context, inspection *database.Inspection, links []database.FaultLink) {
	p.publish(ctx, p.config.Topics.InspectionSubmitted, inspection.Site, InspectionSubmittedEvent{
		InspectionID:  inspection.ID,
		Site:          inspection.Site,
		SchemaID:      inspection.SchemaID,
		SchemaVersion: inspection.SchemaVersion,
		Inspector:     inspection.Inspector,
		SubmittedAt:   inspection.SubmittedAt,
		FaultLinks:    links,
	})
}

// FaultCreated emits a fault-created event.
func (p *Publisher) FaultCreated(ctx context.Context, fault *database.Fault) {
	p.publish(ctx, p.config.Topics.FaultCreated, fault.Site, faultEvent(fault, ""))
}

// FaultStatusChanged emits a fault-status-changed event.
func (p *Publisher) FaultStatusChanged(ctx context.Context, fault *database.Fault, previous database.FaultStatus) {
	p.publish(ctx, p.config.Topics.FaultStatusChanged, fault.Site, faultEvent(fault, previous))
}

// FaultEscalated emits a fault-escalated event after an escalation email.
func (p *Publisher) FaultEscalated(ctx context.Context, fault *database.Fault) {
	p.publish(ctx, p.config.Topics.FaultEscalated, fault.Site, faultEvent(fault, ""))
}

func faultEvent(fault *database.Fault, previous database.FaultStatus) FaultEvent {
	return FaultEvent{
		FaultID:        fault.ID,
		Site:           fault.Site,
		Type:           fault.Type,
		Status:         fault.Status,
		PreviousStatus: previous,
		IsCritical:     fault.IsCritical,
		ReportedTime:   fault.ReportedTime,
		Timestamp:      time.Now(),
	}
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "topic", topic, "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Error("Failed to publish event", "topic", topic, "error", err)
		return
	}

	p.logger.Debug("Event published", "topic", topic, "key", key)
}
