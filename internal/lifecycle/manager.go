// Package lifecycle owns fault state transitions and the time-derived rules
// built on them: overdue detection, escalation-email gating and treatment
// duration. Everything here is a pure function of fault state and the clock
// the caller passes in; persistence stays with the repositories.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sitewatch/inspection-engine/internal/database"
)

var (
	// ErrInvalidTransition is returned for a status change outside the
	// forward-only transition graph.
	ErrInvalidTransition = errors.New("invalid fault status transition")
	// ErrDescriptionRequired is returned when a fault of a free-text
	// category is created without a description.
	ErrDescriptionRequired = errors.New("fault description required")
)

// transitions is the forward transition graph. Reopening a closed fault is
// deliberately absent: it needs the explicit reopen option.
var transitions = map[database.FaultStatus][]database.FaultStatus{
	database.FaultOpen:        {database.FaultInTreatment, database.FaultClosed},
	database.FaultInTreatment: {database.FaultClosed},
	database.FaultClosed:      {},
}

// TransitionOptions carries the flags a plain status change does not.
type TransitionOptions struct {
	// Reopen permits the closed -> open transition.
	Reopen bool
}

// Manager applies lifecycle rules to faults. The thresholds come from
// configuration; both default to 24h.
type Manager struct {
	overdueAfter  time.Duration
	emailInterval time.Duration
}

// NewManager creates a lifecycle manager with the given overdue threshold
// and escalation email repeat interval.
func NewManager(overdueAfter, emailInterval time.Duration) *Manager {
	return &Manager{overdueAfter: overdueAfter, emailInterval: emailInterval}
}

// NewFault builds a fault in its initial open state.
func (m *Manager) NewFault(site string, faultType database.FaultType, description string, isCritical, isPartiallyDisabling bool, reportedBy string, now time.Time) (*database.Fault, error) {
	if !faultType.Valid() {
		return nil, fmt.Errorf("unknown fault type %q", faultType)
	}
	if faultType.RequiresDescription() && description == "" {
		return nil, fmt.Errorf("fault type %s: %w", faultType, ErrDescriptionRequired)
	}

	return &database.Fault{
		ID:                   uuid.NewString(),
		Site:                 site,
		Type:                 faultType,
		Description:          description,
		IsCritical:           isCritical,
		IsPartiallyDisabling: isPartiallyDisabling,
		Status:               database.FaultOpen,
		ReportedTime:         now,
		ReportedBy:           reportedBy,
		LastUpdatedBy:        reportedBy,
		LastUpdatedTime:      now,
	}, nil
}

// Transition moves a fault to newStatus, stamping the audit fields. Closing
// sets closed_time and closed_by; reopening clears them, keeping the
// "closed_time set iff closed" invariant.
func (m *Manager) Transition(fault *database.Fault, newStatus database.FaultStatus, actor string, t time.Time, opts TransitionOptions) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	if !m.canTransition(fault.Status, newStatus, opts) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, fault.Status, newStatus)
	}

	fault.Status = newStatus
	fault.LastUpdatedBy = actor
	fault.LastUpdatedTime = t

	if newStatus == database.FaultClosed {
		fault.ClosedTime = &t
		fault.ClosedBy = &actor
	} else {
		fault.ClosedTime = nil
		fault.ClosedBy = nil
	}

	return nil
}

func (m *Manager) canTransition(from, to database.FaultStatus, opts TransitionOptions) bool {
	if from == database.FaultClosed && to == database.FaultOpen {
		return opts.Reopen
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AssignTechnician records the technician handling a fault.
func (m *Manager) AssignTechnician(fault *database.Fault, technician, actor string, t time.Time) {
	fault.Technician = &technician
	fault.LastUpdatedBy = actor
	fault.LastUpdatedTime = t
}

// IsOverdue reports whether a non-closed fault has been open at least the
// overdue threshold.
func (m *Manager) IsOverdue(fault *database.Fault, now time.Time) bool {
	if fault.Status == database.FaultClosed {
		return false
	}
	return now.Sub(fault.ReportedTime) >= m.overdueAfter
}

// ShouldSendEmail reports whether an escalation email is due: the fault is
// not closed and either it became overdue without ever being emailed, or the
// last email is at least one repeat interval old. Dispatching code must call
// RecordEmailSent afterwards or every poll will re-signal.
func (m *Manager) ShouldSendEmail(fault *database.Fault, now time.Time) bool {
	if fault.Status == database.FaultClosed {
		return false
	}
	if fault.LastEmailTime == nil {
		return m.IsOverdue(fault, now)
	}
	return now.Sub(*fault.LastEmailTime) >= m.emailInterval
}

// RecordEmailSent stamps the escalation email time on the in-memory fault.
func (m *Manager) RecordEmailSent(fault *database.Fault, now time.Time) {
	fault.LastEmailTime = &now
}

// TreatmentDuration returns how long a fault has been in treatment, in whole
// hours floored at zero. Open faults have no measurable duration yet and
// report ok=false.
func (m *Manager) TreatmentDuration(fault *database.Fault) (hours int, ok bool) {
	if fault.Status == database.FaultOpen {
		return 0, false
	}

	end := fault.LastUpdatedTime
	if fault.Status == database.FaultClosed && fault.ClosedTime != nil {
		end = *fault.ClosedTime
	}

	d := end.Sub(fault.ReportedTime)
	if d < 0 {
		d = 0
	}
	return int(d.Hours()), true
}
