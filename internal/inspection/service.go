// Package inspection composes the schema store, form validator, linkage
// resolver and fault lifecycle into the submission and fault operations the
// service exposes.
package inspection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sitewatch/inspection-engine/internal/database"
	"github.com/sitewatch/inspection-engine/internal/lifecycle"
	"github.com/sitewatch/inspection-engine/internal/linkage"
	"github.com/sitewatch/inspection-engine/internal/schema"
	"github.com/sitewatch/inspection-engine/internal/validation"
)

// ValidationFailedError aggregates the field errors of a rejected
// submission. It is a caller error, not a system fault.
type ValidationFailedError struct {
	Result validation.Result
}

// Error implements the error interface.
func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("submission failed validation with %d field error(s)", len(e.Result.Errors))
}

// SchemaSource supplies the current head schema of an inspection type.
// Implemented by schema.Store.
type SchemaSource interface {
	Get(ctx context.Context, id string) (*schema.Schema, error)
}

// SubmissionStore persists an inspection with its faults and links as one
// atomic unit. Implemented by database.InspectionRepository.
type SubmissionStore interface {
	PersistSubmission(ctx context.Context, inspection *database.Inspection, newFaults []*database.Fault, links []database.FaultLink) error
}

// FaultStore is the fault persistence the service needs. Implemented by
// database.FaultRepository.
type FaultStore interface {
	GetByID(ctx context.Context, id string) (*database.Fault, error)
	Create(ctx context.Context, fault *database.Fault) error
	Update(ctx context.Context, fault *database.Fault) error
	RecordEmailSent(ctx context.Context, faultID string, sentAt time.Time) error
	ListForEscalation(ctx context.Context, now time.Time, overdueAfter, emailInterval time.Duration, limit int) ([]*database.Fault, error)
}

// EventPublisher emits domain events after state is committed. Implemented
// by events.Publisher; a nil publisher disables events.
type EventPublisher interface {
	InspectionSubmitted(ctx context.Context, inspection *database.Inspection, links []database.FaultLink)
	FaultCreated(ctx context.Context, fault *database.Fault)
	FaultStatusChanged(ctx context.Context, fault *database.Fault, previous database.FaultStatus)
}

// SubmitRequest carries one inspection submission.
type SubmitRequest struct {
	SchemaID    string
	Site        string
	Inspector   string
	Answers     map[string]string
	Resolutions map[string]linkage.Resolution
}

// Submission is the committed result of a successful submission.
type Submission struct {
	Inspection *database.Inspection
	NewFaults  []*database.Fault
	Links      []database.FaultLink
}

// Service orchestrates inspection submissions and fault mutations.
type Service struct {
	schemas     SchemaSource
	submissions SubmissionStore
	faults      FaultStore
	resolver    *linkage.Resolver
	lifecycle   *lifecycle.Manager
	publisher   EventPublisher
	escalation  EscalationSettings
	logger      *slog.Logger
	now         func() time.Time
}

// EscalationSettings are the polling parameters for escalation listing.
type EscalationSettings struct {
	OverdueAfter  time.Duration
	EmailInterval time.Duration
	BatchSize     int
}

// NewService creates the orchestrator. publisher may be nil.
func NewService(
	schemas SchemaSource,
	submissions SubmissionStore,
	faults FaultStore,
	resolver *linkage.Resolver,
	lifecycleMgr *lifecycle.Manager,
	publisher EventPublisher,
	escalation EscalationSettings,
	logger *slog.Logger,
) *Service {
	return &Service{
		schemas:     schemas,
		submissions: submissions,
		faults:      faults,
		resolver:    resolver,
		lifecycle:   lifecycleMgr,
		publisher:   publisher,
		escalation:  escalation,
		logger:      logger,
		now:         time.Now,
	}
}

// SubmitInspection validates the answers against the current frozen schema
// version, resolves every boolean failure into a fault link, and commits the
// inspection, new faults and links atomically. Validation problems come back
// as *ValidationFailedError; linkage problems as the linkage sentinels.
func (s *Service) SubmitInspection(ctx context.Context, req SubmitRequest) (*Submission, error) {
	sc, err := s.schemas.Get(ctx, req.SchemaID)
	if err != nil {
		return nil, err
	}

	result := validation.Validate(sc, req.Answers)
	if !result.OK() {
		s.logger.Info("Inspection submission rejected",
			"schema_id", req.SchemaID,
			"site", req.Site,
			"field_errors", len(result.Errors))
		return nil, &ValidationFailedError{Result: result}
	}

	now := s.now()
	inspection := &database.Inspection{
		ID:            uuid.NewString(),
		Site:          req.Site,
		SchemaID:      sc.ID,
		SchemaVersion: sc.Version,
		Inspector:     req.Inspector,
		SubmittedAt:   now,
		Answers:       database.AnswerMap(req.Answers),
	}

	outcome, err := s.resolver.Resolve(ctx, inspection.ID, req.Site, req.Inspector,
		result.BooleanFailures, req.Resolutions, now)
	if err != nil {
		return nil, err
	}

	if err := s.submissions.PersistSubmission(ctx, inspection, outcome.NewFaults, outcome.Links); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.InspectionSubmitted(ctx, inspection, outcome.Links)
		for _, fault := range outcome.NewFaults {
			s.publisher.FaultCreated(ctx, fault)
		}
	}

	return &Submission{Inspection: inspection, NewFaults: outcome.NewFaults, Links: outcome.Links}, nil
}

// ReportFault records a manually reported fault, outside any inspection.
func (s *Service) ReportFault(ctx context.Context, site string, faultType database.FaultType, description string, isCritical, isPartiallyDisabling bool, reportedBy string) (*database.Fault, error) {
	fault, err := s.lifecycle.NewFault(site, faultType, description, isCritical, isPartiallyDisabling, reportedBy, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.faults.Create(ctx, fault); err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.FaultCreated(ctx, fault)
	}
	return fault, nil
}

// UpdateFaultStatus transitions a fault through the lifecycle graph and
// persists it under the optimistic lock. On database.ErrConflict the caller
// should re-fetch and retry.
func (s *Service) UpdateFaultStatus(ctx context.Context, faultID string, newStatus database.FaultStatus, actor string) (*database.Fault, error) {
	return s.transitionFault(ctx, faultID, newStatus, actor, lifecycle.TransitionOptions{})
}

// ReopenFault explicitly reopens a closed fault.
func (s *Service) ReopenFault(ctx context.Context, faultID, actor string) (*database.Fault, error) {
	return s.transitionFault(ctx, faultID, database.FaultOpen, actor, lifecycle.TransitionOptions{Reopen: true})
}

func (s *Service) transitionFault(ctx context.Context, faultID string, newStatus database.FaultStatus, actor string, opts lifecycle.TransitionOptions) (*database.Fault, error) {
	fault, err := s.faults.GetByID(ctx, faultID)
	if err != nil {
		return nil, err
	}

	previous := fault.Status
	if err := s.lifecycle.Transition(fault, newStatus, actor, s.now(), opts); err != nil {
		return nil, err
	}

	if err := s.faults.Update(ctx, fault); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.FaultStatusChanged(ctx, fault, previous)
	}
	return fault, nil
}

// AssignTechnician sets the technician on a fault.
func (s *Service) AssignTechnician(ctx context.Context, faultID, technician, actor string) (*database.Fault, error) {
	fault, err := s.faults.GetByID(ctx, faultID)
	if err != nil {
		return nil, err
	}

	s.lifecycle.AssignTechnician(fault, technician, actor, s.now())

	if err := s.faults.Update(ctx, fault); err != nil {
		return nil, err
	}
	return fault, nil
}

// PollEscalations returns the faults whose escalation email is due at the
// given instant. The repository narrows the candidate set; the lifecycle
// rule makes the final call so boundary semantics live in one place.
func (s *Service) PollEscalations(ctx context.Context, now time.Time) ([]*database.Fault, error) {
	candidates, err := s.faults.ListForEscalation(ctx, now,
		s.escalation.OverdueAfter, s.escalation.EmailInterval, s.escalation.BatchSize)
	if err != nil {
		return nil, err
	}

	due := make([]*database.Fault, 0, len(candidates))
	for _, fault := range candidates {
		if s.lifecycle.ShouldSendEmail(fault, now) {
			due = append(due, fault)
		}
	}
	return due, nil
}

// RecordEmailSent persists the escalation email timestamp for a fault.
func (s *Service) RecordEmailSent(ctx context.Context, faultID string, sentAt time.Time) error {
	return s.faults.RecordEmailSent(ctx, faultID, sentAt)
}

// TreatmentDuration exposes the lifecycle treatment duration for a fault.
func (s *Service) TreatmentDuration(fault *database.Fault) (int, bool) {
	return s.lifecycle.TreatmentDuration(fault)
}
