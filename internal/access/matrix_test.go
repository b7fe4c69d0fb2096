package access

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGrants(t *testing.T) {
	c := NewController(slog.Default())

	assert.Equal(t, 1, c.Current().Version)
	assert.True(t, c.Allows(RoleAdmin, PermManageAccess))
	assert.True(t, c.Allows(RoleEntrepreneur, PermSubmitInspection))
	assert.False(t, c.Allows(RoleEntrepreneur, PermManageSchemas))
	assert.True(t, c.Allows(RoleMaintenance, PermUpdateFaultStatus))
	assert.False(t, c.Allows(RoleMaintenance, PermReopenFault))
	assert.True(t, c.Allows(RoleControlCenter, PermReopenFault))
	assert.False(t, c.Allows(Role("unknown"), PermViewFaults))
}

func TestReplaceBumpsVersion(t *testing.T) {
	c := NewController(slog.Default())

	next := c.Replace(map[Role][]Permission{
		RoleAdmin: {PermViewFaults},
	})

	assert.Equal(t, 2, next.Version)
	assert.True(t, c.Allows(RoleAdmin, PermViewFaults))
	assert.False(t, c.Allows(RoleAdmin, PermManageAccess))
	assert.False(t, c.Allows(RoleEntrepreneur, PermSubmitInspection))
}

func TestReplaceKeepsOldSnapshotForHolders(t *testing.T) {
	c := NewController(slog.Default())
	held := c.Current()

	c.Replace(map[Role][]Permission{RoleAdmin: {}})

	// the snapshot taken before the swap is unchanged
	assert.True(t, held.Allows(RoleAdmin, PermManageAccess))
	assert.False(t, c.Allows(RoleAdmin, PermManageAccess))
}

func TestConcurrentReplaceNeverSkipsVersions(t *testing.T) {
	c := NewController(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Replace(map[Role][]Permission{RoleAdmin: {PermViewFaults}})
		}()
	}
	wg.Wait()

	assert.Equal(t, 21, c.Current().Version)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"maintenance": ["view_faults"]}`), 0o644))

	c := NewController(slog.Default())
	require.NoError(t, c.LoadFile(path))

	assert.True(t, c.Allows(RoleMaintenance, PermViewFaults))
	assert.False(t, c.Allows(RoleMaintenance, PermReportFault))
	assert.False(t, c.Allows(RoleAdmin, PermManageAccess))
}

func TestLoadFileEmptyPathKeepsDefaults(t *testing.T) {
	c := NewController(slog.Default())
	require.NoError(t, c.LoadFile(""))
	assert.True(t, c.Allows(RoleAdmin, PermManageAccess))
}

func TestLoadFileMissing(t *testing.T) {
	c := NewController(slog.Default())
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "absent.json")))
}
