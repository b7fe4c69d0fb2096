package inspection

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/inspection-engine/internal/database"
	"github.com/sitewatch/inspection-engine/internal/lifecycle"
	"github.com/sitewatch/inspection-engine/internal/linkage"
	"github.com/sitewatch/inspection-engine/internal/schema"
	"github.com/sitewatch/inspection-engine/internal/validation"
)

var now = time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

type fakeSchemaSource struct {
	schemas map[string]*schema.Schema
}

func (f *fakeSchemaSource) Get(_ context.Context, id string) (*schema.Schema, error) {
	sc, ok := f.schemas[id]
	if !ok {
		return nil, schema.ErrSchemaNotFound
	}
	return sc, nil
}

type fakeSubmissionStore struct {
	inspections []*database.Inspection
	faults      []*database.Fault
	links       []database.FaultLink
	err         error
}

func (f *fakeSubmissionStore) PersistSubmission(_ context.Context, inspection *database.Inspection, newFaults []*database.Fault, links []database.FaultLink) error {
	if f.err != nil {
		return f.err
	}
	f.inspections = append(f.inspections, inspection)
	f.faults = append(f.faults, newFaults...)
	f.links = append(f.links, links...)
	return nil
}

type fakeFaultStore struct {
	faults     map[string]*database.Fault
	updateErr  error
	emailSends []string
	candidates []*database.Fault
}

func newFakeFaultStore(faults ...*database.Fault) *fakeFaultStore {
	store := &fakeFaultStore{faults: make(map[string]*database.Fault)}
	for _, fault := range faults {
		store.faults[fault.ID] = fault
	}
	return store
}

func (f *fakeFaultStore) GetByID(_ context.Context, id string) (*database.Fault, error) {
	fault, ok := f.faults[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *fault
	return &clone, nil
}

func (f *fakeFaultStore) Create(_ context.Context, fault *database.Fault) error {
	f.faults[fault.ID] = fault
	return nil
}

func (f *fakeFaultStore) Update(_ context.Context, fault *database.Fault) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.faults[fault.ID] = fault
	return nil
}

func (f *fakeFaultStore) RecordEmailSent(_ context.Context, faultID string, _ time.Time) error {
	f.emailSends = append(f.emailSends, faultID)
	return nil
}

func (f *fakeFaultStore) ListForEscalation(_ context.Context, _ time.Time, _, _ time.Duration, _ int) ([]*database.Fault, error) {
	return f.candidates, nil
}

type recordedEvents struct {
	submitted []string
	created   []string
	changed   []string
}

func (r *recordedEvents) InspectionSubmitted(_ context.Context, inspection *database.Inspection, _ []database.FaultLink) {
	r.submitted = append(r.submitted, inspection.ID)
}

func (r *recordedEvents) FaultCreated(_ context.Context, fault *database.Fault) {
	r.created = append(r.created, fault.ID)
}

func (r *recordedEvents) FaultStatusChanged(_ context.Context, fault *database.Fault, _ database.FaultStatus) {
	r.changed = append(r.changed, fault.ID)
}

func perimeterSchema() *schema.Schema {
	return &schema.Schema{
		ID:       "perimeter",
		Name:     "Perimeter Check",
		Category: schema.CategoryInspection,
		Version:  4,
		Fields: schema.FieldList{
			{ID: "gate_locked", Label: "Gate locked", Kind: schema.FieldBoolean, Required: true, Enabled: true},
			{ID: "fence_intact", Label: "Fence intact", Kind: schema.FieldBoolean, Enabled: true},
		},
	}
}

type serviceFixture struct {
	service     *Service
	submissions *fakeSubmissionStore
	faults      *fakeFaultStore
	events      *recordedEvents
}

func newFixture(t *testing.T, faults ...*database.Fault) *serviceFixture {
	t.Helper()

	faultStore := newFakeFaultStore(faults...)
	submissions := &fakeSubmissionStore{}
	events := &recordedEvents{}
	lifecycleMgr := lifecycle.NewManager(24*time.Hour, 24*time.Hour)
	resolver := linkage.NewResolver(faultStore, lifecycleMgr, slog.Default())

	service := NewService(
		&fakeSchemaSource{schemas: map[string]*schema.Schema{"perimeter": perimeterSchema()}},
		submissions,
		faultStore,
		resolver,
		lifecycleMgr,
		events,
		EscalationSettings{OverdueAfter: 24 * time.Hour, EmailInterval: 24 * time.Hour, BatchSize: 100},
		slog.Default(),
	)
	service.now = func() time.Time { return now }

	return &serviceFixture{service: service, submissions: submissions, faults: faultStore, events: events}
}

func TestSubmitInspectionCommitsAtomically(t *testing.T) {
	fx := newFixture(t)

	submission, err := fx.service.SubmitInspection(context.Background(), SubmitRequest{
		SchemaID:  "perimeter",
		Site:      "north-gate",
		Inspector: "inspector-1",
		Answers: map[string]string{
			"gate_locked":  "true",
			"fence_intact": "false",
		},
		Resolutions: map[string]linkage.Resolution{
			"fence_intact": {FaultType: database.FaultTypeFence, Description: "cut near tower 4"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "perimeter", submission.Inspection.SchemaID)
	assert.Equal(t, 4, submission.Inspection.SchemaVersion)
	assert.Equal(t, now, submission.Inspection.SubmittedAt)
	assert.Equal(t, database.AnswerMap{
		"gate_locked":  "true",
		"fence_intact": "false",
	}, submission.Inspection.Answers)
	require.Len(t, submission.NewFaults, 1)
	require.Len(t, submission.Links, 1)

	// everything went through the one atomic persist call
	require.Len(t, fx.submissions.inspections, 1)
	require.Len(t, fx.submissions.faults, 1)
	require.Len(t, fx.submissions.links, 1)

	assert.Equal(t, []string{submission.Inspection.ID}, fx.events.submitted)
	assert.Equal(t, []string{submission.NewFaults[0].ID}, fx.events.created)
}

func TestSubmitInspectionValidationFailure(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.SubmitInspection(context.Background(), SubmitRequest{
		SchemaID:  "perimeter",
		Site:      "north-gate",
		Inspector: "inspector-1",
		Answers:   map[string]string{"gate_locked": "maybe"},
	})

	var validationErr *ValidationFailedError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Result.Errors, 1)
	assert.Equal(t, validation.InvalidValue, validationErr.Result.Errors[0].Code)

	// nothing persisted, nothing published
	assert.Empty(t, fx.submissions.inspections)
	assert.Empty(t, fx.events.submitted)
}

func TestSubmitInspectionUnresolvedFailureAborts(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.SubmitInspection(context.Background(), SubmitRequest{
		SchemaID:  "perimeter",
		Site:      "north-gate",
		Inspector: "inspector-1",
		Answers: map[string]string{
			"gate_locked":  "true",
			"fence_intact": "false",
		},
	})

	require.ErrorIs(t, err, linkage.ErrUnresolvedFaultLink)
	assert.Empty(t, fx.submissions.inspections)
	assert.Empty(t, fx.submissions.faults)
}

func TestSubmitInspectionUnknownSchema(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.SubmitInspection(context.Background(), SubmitRequest{
		SchemaID: "missing", Site: "north-gate",
	})
	assert.ErrorIs(t, err, schema.ErrSchemaNotFound)
}

func TestSubmitInspectionPersistFailureSuppressesEvents(t *testing.T) {
	fx := newFixture(t)
	fx.submissions.err = errors.New("connection reset")

	_, err := fx.service.SubmitInspection(context.Background(), SubmitRequest{
		SchemaID:  "perimeter",
		Site:      "north-gate",
		Inspector: "inspector-1",
		Answers:   map[string]string{"gate_locked": "true"},
	})

	require.Error(t, err)
	assert.Empty(t, fx.events.submitted)
}

func TestReportFault(t *testing.T) {
	fx := newFixture(t)

	fault, err := fx.service.ReportFault(context.Background(), "north-gate",
		database.FaultTypeLighting, "pole 12 dark", false, true, "guard-2")
	require.NoError(t, err)

	assert.Equal(t, database.FaultOpen, fault.Status)
	assert.Equal(t, now, fault.ReportedTime)
	assert.Contains(t, fx.faults.faults, fault.ID)
	assert.Equal(t, []string{fault.ID}, fx.events.created)
}

func TestUpdateFaultStatus(t *testing.T) {
	fault := &database.Fault{ID: "fault-1", Site: "north-gate", Status: database.FaultOpen, ReportedTime: now.Add(-2 * time.Hour)}
	fx := newFixture(t, fault)

	updated, err := fx.service.UpdateFaultStatus(context.Background(), "fault-1", database.FaultInTreatment, "tech-5")
	require.NoError(t, err)

	assert.Equal(t, database.FaultInTreatment, updated.Status)
	assert.Equal(t, "tech-5", updated.LastUpdatedBy)
	assert.Equal(t, []string{"fault-1"}, fx.events.changed)
}

func TestUpdateFaultStatusInvalidTransition(t *testing.T) {
	fault := &database.Fault{ID: "fault-1", Site: "north-gate", Status: database.FaultClosed}
	fx := newFixture(t, fault)

	_, err := fx.service.UpdateFaultStatus(context.Background(), "fault-1", database.FaultOpen, "tech-5")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	assert.Empty(t, fx.events.changed)
}

func TestUpdateFaultStatusConflictSurfaces(t *testing.T) {
	fault := &database.Fault{ID: "fault-1", Site: "north-gate", Status: database.FaultOpen}
	fx := newFixture(t, fault)
	fx.faults.updateErr = database.ErrConflict

	_, err := fx.service.UpdateFaultStatus(context.Background(), "fault-1", database.FaultClosed, "tech-5")
	assert.ErrorIs(t, err, database.ErrConflict)
	assert.Empty(t, fx.events.changed)
}

func TestReopenFault(t *testing.T) {
	closedAt := now.Add(-time.Hour)
	closedBy := "supervisor"
	fault := &database.Fault{
		ID: "fault-1", Site: "north-gate", Status: database.FaultClosed,
		ClosedTime: &closedAt, ClosedBy: &closedBy,
	}
	fx := newFixture(t, fault)

	reopened, err := fx.service.ReopenFault(context.Background(), "fault-1", "control-1")
	require.NoError(t, err)

	assert.Equal(t, database.FaultOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedTime)
	assert.Nil(t, reopened.ClosedBy)
}

func TestAssignTechnician(t *testing.T) {
	fault := &database.Fault{ID: "fault-1", Site: "north-gate", Status: database.FaultOpen}
	fx := newFixture(t, fault)

	updated, err := fx.service.AssignTechnician(context.Background(), "fault-1", "tech-9", "dispatcher")
	require.NoError(t, err)
	require.NotNil(t, updated.Technician)
	assert.Equal(t, "tech-9", *updated.Technician)
}

func TestPollEscalationsAppliesLifecycleRule(t *testing.T) {
	recent := now.Add(-23 * time.Hour)
	overdue := &database.Fault{ID: "fault-due", Status: database.FaultOpen, ReportedTime: now.Add(-30 * time.Hour)}
	quiet := &database.Fault{ID: "fault-quiet", Status: database.FaultOpen, ReportedTime: now.Add(-30 * time.Hour), LastEmailTime: &recent}

	fx := newFixture(t)
	fx.faults.candidates = []*database.Fault{overdue, quiet}

	due, err := fx.service.PollEscalations(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "fault-due", due[0].ID)
}

func TestRecordEmailSent(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.service.RecordEmailSent(context.Background(), "fault-1", now))
	assert.Equal(t, []string{"fault-1"}, fx.faults.emailSends)
}

func TestTreatmentDurationPassthrough(t *testing.T) {
	fx := newFixture(t)
	closedAt := now
	fault := &database.Fault{
		Status:       database.FaultClosed,
		ReportedTime: now.Add(-26 * time.Hour),
		ClosedTime:   &closedAt,
	}

	hours, ok := fx.service.TreatmentDuration(fault)
	require.True(t, ok)
	assert.Equal(t, 26, hours)
}
