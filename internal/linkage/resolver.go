// Package linkage turns the boolean failures of a validated inspection into
// fault links: each failing pass/fail field either raises a new fault or
// points at an existing open one on the same site.
package linkage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitewatch/inspection-engine/internal/database"
	"github.com/sitewatch/inspection-engine/internal/lifecycle"
)

var (
	// ErrFaultNotFound is returned when an existing-fault reference does not
	// resolve to a fault on the inspection's site.
	ErrFaultNotFound = errors.New("referenced fault not found on site")
	// ErrFaultAlreadyClosed is returned when linking to a closed fault;
	// reopening must go through the lifecycle manager explicitly.
	ErrFaultAlreadyClosed = errors.New("referenced fault is already closed")
	// ErrUnresolvedFaultLink is returned when a boolean failure has no
	// resolution supplied; the whole submission aborts.
	ErrUnresolvedFaultLink = errors.New("boolean failure has no fault resolution")
)

// Resolution is the caller-supplied answer to one boolean failure: either a
// new fault (description plus classification) or a reference to an existing
// open fault.
type Resolution struct {
	Description          string             `json:"description,omitempty"`
	FaultType            database.FaultType `json:"fault_type,omitempty"`
	IsCritical           bool               `json:"is_critical,omitempty"`
	IsPartiallyDisabling bool               `json:"is_partially_disabling,omitempty"`
	ExistingFaultID      string             `json:"existing_fault_id,omitempty"`
}

// FaultFinder is the fault lookup the resolver needs. Implemented by
// database.FaultRepository.
type FaultFinder interface {
	GetByID(ctx context.Context, id string) (*database.Fault, error)
}

// Outcome is the set of faults to create and links to persist alongside the
// inspection.
type Outcome struct {
	NewFaults []*database.Fault
	Links     []database.FaultLink
}

// Resolver resolves boolean failures against the fault catalogue.
type Resolver struct {
	faults    FaultFinder
	lifecycle *lifecycle.Manager
	logger    *slog.Logger
}

// NewResolver creates a new linkage resolver.
func NewResolver(faults FaultFinder, lifecycleMgr *lifecycle.Manager, logger *slog.Logger) *Resolver {
	return &Resolver{faults: faults, lifecycle: lifecycleMgr, logger: logger}
}

// Resolve produces the faults and links for every boolean failure of an
// inspection. Any failure without a resolution, or a resolution that cannot
// be honored, aborts the whole set. Links are unique per (inspection, fault):
// a second field pointing at the same fault folds into the first link.
func (r *Resolver) Resolve(
	ctx context.Context,
	inspectionID, site, inspector string,
	booleanFailures []string,
	resolutions map[string]Resolution,
	now time.Time,
) (*Outcome, error) {
	outcome := &Outcome{}
	linkedFaults := make(map[string]struct{})

	for _, fieldID := range booleanFailures {
		res, ok := resolutions[fieldID]
		if !ok {
			return nil, fmt.Errorf("field %s: %w", fieldID, ErrUnresolvedFaultLink)
		}

		var faultID string
		if res.ExistingFaultID != "" {
			fault, err := r.resolveExisting(ctx, site, res.ExistingFaultID)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fieldID, err)
			}
			faultID = fault.ID
		} else {
			faultType := res.FaultType
			if faultType == "" {
				faultType = database.FaultTypeOther
			}
			fault, err := r.lifecycle.NewFault(site, faultType, res.Description,
				res.IsCritical, res.IsPartiallyDisabling, inspector, now)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fieldID, err)
			}
			outcome.NewFaults = append(outcome.NewFaults, fault)
			faultID = fault.ID
		}

		if _, dup := linkedFaults[faultID]; dup {
			r.logger.Debug("Fault already linked by earlier field, folding link",
				"inspection_id", inspectionID, "fault_id", faultID, "field_id", fieldID)
			continue
		}
		linkedFaults[faultID] = struct{}{}

		outcome.Links = append(outcome.Links, database.FaultLink{
			InspectionID: inspectionID,
			FaultID:      faultID,
			FieldID:      fieldID,
		})
	}

	return outcome, nil
}

func (r *Resolver) resolveExisting(ctx context.Context, site, faultID string) (*database.Fault, error) {
	fault, err := r.faults.GetByID(ctx, faultID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFaultNotFound, faultID)
	}
	if err != nil {
		return nil, err
	}
	if fault.Site != site {
		return nil, fmt.Errorf("%w: %s", ErrFaultNotFound, faultID)
	}
	if fault.Status == database.FaultClosed {
		return nil, fmt.Errorf("%w: %s", ErrFaultAlreadyClosed, faultID)
	}
	return fault, nil
}
