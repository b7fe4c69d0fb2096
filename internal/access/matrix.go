// Package access holds the role to permission matrix as a versioned,
// immutable snapshot. Administrators replace the whole snapshot; readers
// never observe a half-updated table.
package access

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// Role is a tenant role known to the platform.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleEntrepreneur  Role = "entrepreneur"
	RoleIntegrator    Role = "integrator"
	RoleMaintenance   Role = "maintenance"
	RoleControlCenter Role = "control_center"
)

// Permission names an operation this service guards.
type Permission string

const (
	PermSubmitInspection  Permission = "submit_inspection"
	PermReportFault       Permission = "report_fault"
	PermUpdateFaultStatus Permission = "update_fault_status"
	PermReopenFault       Permission = "reopen_fault"
	PermManageSchemas     Permission = "manage_schemas"
	PermManageAccess      Permission = "manage_access"
	PermViewFaults        Permission = "view_faults"
	PermViewInspections   Permission = "view_inspections"
)

// Matrix is one immutable snapshot of the grants table.
type Matrix struct {
	Version int                   `json:"version"`
	Grants  map[Role][]Permission `json:"grants"`
}

// Allows reports whether the role holds the permission in this snapshot.
func (m *Matrix) Allows(role Role, perm Permission) bool {
	for _, p := range m.Grants[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Controller owns the live snapshot and swaps it atomically on replacement.
type Controller struct {
	current atomic.Pointer[Matrix]
	logger  *slog.Logger
}

// NewController creates a controller seeded with the built-in defaults.
func NewController(logger *slog.Logger) *Controller {
	c := &Controller{logger: logger}
	c.current.Store(&Matrix{Version: 1, Grants: defaultGrants()})
	return c
}

// LoadFile replaces the defaults with a matrix file, keeping version 1.
// An empty path is a no-op.
func (c *Controller) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read access matrix: %w", err)
	}

	var grants map[Role][]Permission
	if err := json.Unmarshal(raw, &grants); err != nil {
		return fmt.Errorf("failed to parse access matrix: %w", err)
	}

	c.current.Store(&Matrix{Version: 1, Grants: grants})
	c.logger.Info("Access matrix loaded", "path", path, "roles", len(grants))
	return nil
}

// Current returns the live snapshot.
func (c *Controller) Current() *Matrix {
	return c.current.Load()
}

// Replace installs a new grants table as the next version. In-flight readers
// keep the snapshot they already hold.
func (c *Controller) Replace(grants map[Role][]Permission) *Matrix {
	for {
		old := c.current.Load()
		next := &Matrix{Version: old.Version + 1, Grants: grants}
		if c.current.CompareAndSwap(old, next) {
			c.logger.Info("Access matrix replaced", "version", next.Version, "roles", len(grants))
			return next
		}
	}
}

// Allows checks the live snapshot.
func (c *Controller) Allows(role Role, perm Permission) bool {
	return c.Current().Allows(role, perm)
}

func defaultGrants() map[Role][]Permission {
	return map[Role][]Permission{
		RoleAdmin: {
			PermSubmitInspection, PermReportFault, PermUpdateFaultStatus,
			PermReopenFault, PermManageSchemas, PermManageAccess,
			PermViewFaults, PermViewInspections,
		},
		RoleEntrepreneur: {
			PermSubmitInspection, PermReportFault,
			PermViewFaults, PermViewInspections,
		},
		RoleIntegrator: {
			PermSubmitInspection, PermReportFault, PermUpdateFaultStatus,
			PermViewFaults, PermViewInspections,
		},
		RoleMaintenance: {
			PermReportFault, PermUpdateFaultStatus,
			PermViewFaults,
		},
		RoleControlCenter: {
			PermReportFault, PermUpdateFaultStatus, PermReopenFault,
			PermViewFaults, PermViewInspections,
		},
	}
}
