package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/inspection-engine/internal/database"
)

var t0 = time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

func newTestManager() *Manager {
	return NewManager(24*time.Hour, 24*time.Hour)
}

func newOpenFault(t *testing.T) *database.Fault {
	t.Helper()
	fault, err := newTestManager().NewFault("north-gate", database.FaultTypeCamera, "", true, false, "inspector-1", t0)
	require.NoError(t, err)
	return fault
}

func TestNewFault(t *testing.T) {
	fault := newOpenFault(t)

	assert.NotEmpty(t, fault.ID)
	assert.Equal(t, database.FaultOpen, fault.Status)
	assert.Equal(t, "north-gate", fault.Site)
	assert.Equal(t, "inspector-1", fault.ReportedBy)
	assert.Equal(t, "inspector-1", fault.LastUpdatedBy)
	assert.Equal(t, t0, fault.ReportedTime)
	assert.Nil(t, fault.ClosedTime)
	assert.Nil(t, fault.LastEmailTime)
}

func TestNewFaultRejectsUnknownType(t *testing.T) {
	_, err := newTestManager().NewFault("site", "plumbing", "leak", false, false, "u", t0)
	assert.Error(t, err)
}

func TestNewFaultOtherRequiresDescription(t *testing.T) {
	m := newTestManager()

	_, err := m.NewFault("site", database.FaultTypeOther, "", false, false, "u", t0)
	assert.ErrorIs(t, err, ErrDescriptionRequired)

	fault, err := m.NewFault("site", database.FaultTypeOther, "strange noise at pump house", false, false, "u", t0)
	require.NoError(t, err)
	assert.Equal(t, database.FaultTypeOther, fault.Type)
}

func TestTransitionGraph(t *testing.T) {
	tests := []struct {
		name    string
		from    database.FaultStatus
		to      database.FaultStatus
		reopen  bool
		allowed bool
	}{
		{"open to in_treatment", database.FaultOpen, database.FaultInTreatment, false, true},
		{"open directly to closed", database.FaultOpen, database.FaultClosed, false, true},
		{"in_treatment to closed", database.FaultInTreatment, database.FaultClosed, false, true},
		{"in_treatment back to open", database.FaultInTreatment, database.FaultOpen, false, false},
		{"closed to open without flag", database.FaultClosed, database.FaultOpen, false, false},
		{"closed to open with reopen", database.FaultClosed, database.FaultOpen, true, true},
		{"closed to in_treatment", database.FaultClosed, database.FaultInTreatment, false, false},
		{"closed to in_treatment with reopen", database.FaultClosed, database.FaultInTreatment, true, false},
		{"same status", database.FaultOpen, database.FaultOpen, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fault := newOpenFault(t)
			fault.Status = tt.from

			err := newTestManager().Transition(fault, tt.to, "actor", t0.Add(time.Hour), TransitionOptions{Reopen: tt.reopen})
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, fault.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, fault.Status)
			}
		})
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	fault := newOpenFault(t)
	err := newTestManager().Transition(fault, "archived", "actor", t0, TransitionOptions{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionStampsAudit(t *testing.T) {
	fault := newOpenFault(t)
	at := t0.Add(2 * time.Hour)

	require.NoError(t, newTestManager().Transition(fault, database.FaultInTreatment, "tech-7", at, TransitionOptions{}))
	assert.Equal(t, "tech-7", fault.LastUpdatedBy)
	assert.Equal(t, at, fault.LastUpdatedTime)
	assert.Nil(t, fault.ClosedTime)
}

func TestCloseSetsClosedFieldsReopenClearsThem(t *testing.T) {
	m := newTestManager()
	fault := newOpenFault(t)
	closedAt := t0.Add(30 * time.Hour)

	require.NoError(t, m.Transition(fault, database.FaultClosed, "supervisor", closedAt, TransitionOptions{}))
	require.NotNil(t, fault.ClosedTime)
	assert.Equal(t, closedAt, *fault.ClosedTime)
	require.NotNil(t, fault.ClosedBy)
	assert.Equal(t, "supervisor", *fault.ClosedBy)

	require.NoError(t, m.Transition(fault, database.FaultOpen, "supervisor", closedAt.Add(time.Hour), TransitionOptions{Reopen: true}))
	assert.Nil(t, fault.ClosedTime)
	assert.Nil(t, fault.ClosedBy)
	assert.Equal(t, database.FaultOpen, fault.Status)
}

func TestIsOverdue(t *testing.T) {
	m := newTestManager()
	fault := newOpenFault(t)

	assert.False(t, m.IsOverdue(fault, t0.Add(23*time.Hour)))
	// boundary is inclusive
	assert.True(t, m.IsOverdue(fault, t0.Add(24*time.Hour)))
	assert.True(t, m.IsOverdue(fault, t0.Add(48*time.Hour)))

	require.NoError(t, m.Transition(fault, database.FaultClosed, "u", t0.Add(time.Hour), TransitionOptions{}))
	assert.False(t, m.IsOverdue(fault, t0.Add(48*time.Hour)))
}

func TestShouldSendEmailFirstReminderAtOverdue(t *testing.T) {
	m := newTestManager()
	fault := newOpenFault(t)

	assert.False(t, m.ShouldSendEmail(fault, t0.Add(12*time.Hour)))
	assert.True(t, m.ShouldSendEmail(fault, t0.Add(25*time.Hour)))
}

func TestShouldSendEmailRepeatInterval(t *testing.T) {
	m := newTestManager()
	fault := newOpenFault(t)

	sentAt := t0.Add(25 * time.Hour)
	require.True(t, m.ShouldSendEmail(fault, sentAt))
	m.RecordEmailSent(fault, sentAt)

	// quiet until a full interval has passed since the last email
	assert.False(t, m.ShouldSendEmail(fault, sentAt.Add(23*time.Hour)))
	assert.True(t, m.ShouldSendEmail(fault, sentAt.Add(24*time.Hour)))
}

func TestShouldSendEmailNeverForClosed(t *testing.T) {
	m := newTestManager()
	fault := newOpenFault(t)
	m.RecordEmailSent(fault, t0.Add(25*time.Hour))

	require.NoError(t, m.Transition(fault, database.FaultClosed, "u", t0.Add(26*time.Hour), TransitionOptions{}))
	assert.False(t, m.ShouldSendEmail(fault, t0.Add(80*time.Hour)))
}

func TestTreatmentDuration(t *testing.T) {
	m := newTestManager()

	t.Run("open fault has none", func(t *testing.T) {
		fault := newOpenFault(t)
		hours, ok := m.TreatmentDuration(fault)
		assert.False(t, ok)
		assert.Zero(t, hours)
	})

	t.Run("in treatment measures to last update", func(t *testing.T) {
		fault := newOpenFault(t)
		require.NoError(t, m.Transition(fault, database.FaultInTreatment, "u", t0.Add(5*time.Hour+40*time.Minute), TransitionOptions{}))

		hours, ok := m.TreatmentDuration(fault)
		require.True(t, ok)
		assert.Equal(t, 5, hours)
	})

	t.Run("closed measures to closed time", func(t *testing.T) {
		fault := newOpenFault(t)
		require.NoError(t, m.Transition(fault, database.FaultInTreatment, "u", t0.Add(time.Hour), TransitionOptions{}))
		require.NoError(t, m.Transition(fault, database.FaultClosed, "u", t0.Add(49*time.Hour+59*time.Minute), TransitionOptions{}))

		hours, ok := m.TreatmentDuration(fault)
		require.True(t, ok)
		assert.Equal(t, 49, hours)
	})

	t.Run("clock skew floors at zero", func(t *testing.T) {
		fault := newOpenFault(t)
		require.NoError(t, m.Transition(fault, database.FaultClosed, "u", t0.Add(-time.Hour), TransitionOptions{}))

		hours, ok := m.TreatmentDuration(fault)
		require.True(t, ok)
		assert.Zero(t, hours)
	})
}

func TestAssignTechnician(t *testing.T) {
	fault := newOpenFault(t)
	at := t0.Add(time.Hour)

	newTestManager().AssignTechnician(fault, "tech-3", "dispatcher", at)
	require.NotNil(t, fault.Technician)
	assert.Equal(t, "tech-3", *fault.Technician)
	assert.Equal(t, "dispatcher", fault.LastUpdatedBy)
	assert.Equal(t, at, fault.LastUpdatedTime)
}
