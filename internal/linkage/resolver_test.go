package linkage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/inspection-engine/internal/database"
	"github.com/sitewatch/inspection-engine/internal/lifecycle"
)

var now = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

type fakeFaultFinder struct {
	faults map[string]*database.Fault
}

func (f *fakeFaultFinder) GetByID(_ context.Context, id string) (*database.Fault, error) {
	fault, ok := f.faults[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return fault, nil
}

func newTestResolver(faults ...*database.Fault) *Resolver {
	finder := &fakeFaultFinder{faults: make(map[string]*database.Fault)}
	for _, fault := range faults {
		finder.faults[fault.ID] = fault
	}
	return NewResolver(finder, lifecycle.NewManager(24*time.Hour, 24*time.Hour), slog.Default())
}

func TestResolveNoFailures(t *testing.T) {
	outcome, err := newTestResolver().Resolve(context.Background(), "insp-1", "north-gate", "inspector-1", nil, nil, now)
	require.NoError(t, err)
	assert.Empty(t, outcome.NewFaults)
	assert.Empty(t, outcome.Links)
}

func TestResolveCreatesNewFault(t *testing.T) {
	outcome, err := newTestResolver().Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{
			"fence_intact": {Description: "cut near tower 4", FaultType: database.FaultTypeFence, IsCritical: true},
		}, now)
	require.NoError(t, err)

	require.Len(t, outcome.NewFaults, 1)
	fault := outcome.NewFaults[0]
	assert.Equal(t, database.FaultTypeFence, fault.Type)
	assert.Equal(t, "north-gate", fault.Site)
	assert.Equal(t, "inspector-1", fault.ReportedBy)
	assert.True(t, fault.IsCritical)
	assert.Equal(t, database.FaultOpen, fault.Status)

	require.Len(t, outcome.Links, 1)
	assert.Equal(t, "insp-1", outcome.Links[0].InspectionID)
	assert.Equal(t, fault.ID, outcome.Links[0].FaultID)
	assert.Equal(t, "fence_intact", outcome.Links[0].FieldID)
}

func TestResolveDefaultsEmptyTypeToOther(t *testing.T) {
	outcome, err := newTestResolver().Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{"fence_intact": {Description: "something odd"}}, now)
	require.NoError(t, err)

	require.Len(t, outcome.NewFaults, 1)
	assert.Equal(t, database.FaultTypeOther, outcome.NewFaults[0].Type)
}

func TestResolveOtherWithoutDescriptionFails(t *testing.T) {
	_, err := newTestResolver().Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{"fence_intact": {}}, now)
	assert.ErrorIs(t, err, lifecycle.ErrDescriptionRequired)
}

func TestResolveMissingResolutionAbortsAll(t *testing.T) {
	_, err := newTestResolver().Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact", "gate_locked"},
		map[string]Resolution{
			"fence_intact": {FaultType: database.FaultTypeFence, Description: "cut"},
		}, now)
	require.ErrorIs(t, err, ErrUnresolvedFaultLink)
	assert.Contains(t, err.Error(), "gate_locked")
}

func TestResolveLinksExistingFault(t *testing.T) {
	existing := &database.Fault{ID: "fault-9", Site: "north-gate", Status: database.FaultOpen}

	outcome, err := newTestResolver(existing).Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{"fence_intact": {ExistingFaultID: "fault-9"}}, now)
	require.NoError(t, err)

	assert.Empty(t, outcome.NewFaults)
	require.Len(t, outcome.Links, 1)
	assert.Equal(t, "fault-9", outcome.Links[0].FaultID)
}

func TestResolveExistingFaultUnknown(t *testing.T) {
	_, err := newTestResolver().Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{"fence_intact": {ExistingFaultID: "ghost"}}, now)
	assert.ErrorIs(t, err, ErrFaultNotFound)
}

func TestResolveExistingFaultOnOtherSite(t *testing.T) {
	elsewhere := &database.Fault{ID: "fault-9", Site: "south-depot", Status: database.FaultOpen}

	_, err := newTestResolver(elsewhere).Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{"fence_intact": {ExistingFaultID: "fault-9"}}, now)
	assert.ErrorIs(t, err, ErrFaultNotFound)
}

func TestResolveExistingFaultClosed(t *testing.T) {
	closed := &database.Fault{ID: "fault-9", Site: "north-gate", Status: database.FaultClosed}

	_, err := newTestResolver(closed).Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact"},
		map[string]Resolution{"fence_intact": {ExistingFaultID: "fault-9"}}, now)
	assert.ErrorIs(t, err, ErrFaultAlreadyClosed)
}

func TestResolveFoldsDuplicateFaultLinks(t *testing.T) {
	existing := &database.Fault{ID: "fault-9", Site: "north-gate", Status: database.FaultInTreatment}

	outcome, err := newTestResolver(existing).Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact", "gate_locked"},
		map[string]Resolution{
			"fence_intact": {ExistingFaultID: "fault-9"},
			"gate_locked":  {ExistingFaultID: "fault-9"},
		}, now)
	require.NoError(t, err)

	// one link only, attributed to the first failing field
	require.Len(t, outcome.Links, 1)
	assert.Equal(t, "fence_intact", outcome.Links[0].FieldID)
}

func TestResolveMixedNewAndExisting(t *testing.T) {
	existing := &database.Fault{ID: "fault-9", Site: "north-gate", Status: database.FaultOpen}

	outcome, err := newTestResolver(existing).Resolve(context.Background(), "insp-1", "north-gate", "inspector-1",
		[]string{"fence_intact", "camera_working"},
		map[string]Resolution{
			"fence_intact":   {ExistingFaultID: "fault-9"},
			"camera_working": {FaultType: database.FaultTypeCamera, Description: "dead feed"},
		}, now)
	require.NoError(t, err)

	require.Len(t, outcome.NewFaults, 1)
	require.Len(t, outcome.Links, 2)
	assert.Equal(t, "fault-9", outcome.Links[0].FaultID)
	assert.Equal(t, outcome.NewFaults[0].ID, outcome.Links[1].FaultID)
}
