package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// FaultRepository handles fault data operations
type FaultRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewFaultRepository creates a new fault repository
func NewFaultRepository(db *sqlx.DB, logger *slog.Logger) *FaultRepository {
	return &FaultRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

const faultInsertQuery = `
	INSERT INTO faults (
		id, site, type, description, is_critical, is_partially_disabling,
		status, reported_time, reported_by, technician, last_updated_by,
		last_updated_time, last_email_time, closed_time, closed_by, version,
		created_at, updated_at
	) VALUES (
		:id, :site, :type, :description, :is_critical, :is_partially_disabling,
		:status, :reported_time, :reported_by, :technician, :last_updated_by,
		:last_updated_time, :last_email_time, :closed_time, :closed_by, :version,
		:created_at, :updated_at
	)`

// Create creates a new fault
func (r *FaultRepository) Create(ctx context.Context, fault *Fault) error {
	fault.Version = 1
	fault.CreatedAt = time.Now()
	fault.UpdatedAt = fault.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, faultInsertQuery, fault); err != nil {
		r.logger.Error("Failed to create fault", "fault_id", fault.ID, "error", err)
		return fmt.Errorf("failed to create fault: %w", err)
	}

	r.logger.Info("Fault created", "fault_id", fault.ID, "site", fault.Site, "type", fault.Type)
	return nil
}

// CreateTx creates a new fault within an existing transaction
func (r *FaultRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, fault *Fault) error {
	fault.Version = 1
	fault.CreatedAt = time.Now()
	fault.UpdatedAt = fault.CreatedAt

	if _, err := tx.NamedExecContext(ctx, faultInsertQuery, fault); err != nil {
		return fmt.Errorf("failed to create fault: %w", err)
	}
	return nil
}

// GetByID retrieves a fault by ID
func (r *FaultRepository) GetByID(ctx context.Context, id string) (*Fault, error) {
	query := `
		SELECT * FROM faults
		WHERE id = $1 AND deleted_at IS NULL`

	var fault Fault
	err := r.db.GetContext(ctx, &fault, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fault %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get fault by ID", "fault_id", id, "error", err)
		return nil, fmt.Errorf("failed to get fault by ID: %w", err)
	}

	return &fault, nil
}

// Update persists a mutated fault under an optimistic lock on its version
// column. A stale read surfaces as ErrConflict so the caller can re-fetch
// and retry instead of silently overwriting a newer transition.
func (r *FaultRepository) Update(ctx context.Context, fault *Fault) error {
	query := `
		UPDATE faults SET
			status = :status,
			description = :description,
			is_critical = :is_critical,
			is_partially_disabling = :is_partially_disabling,
			technician = :technician,
			last_updated_by = :last_updated_by,
			last_updated_time = :last_updated_time,
			last_email_time = :last_email_time,
			closed_time = :closed_time,
			closed_by = :closed_by,
			version = :version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version AND deleted_at IS NULL`

	fault.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, fault)
	if err != nil {
		r.logger.Error("Failed to update fault", "fault_id", fault.ID, "error", err)
		return fmt.Errorf("failed to update fault: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, fault.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("fault %s at version %d: %w", fault.ID, fault.Version, ErrConflict)
	}

	fault.Version++
	r.logger.Info("Fault updated", "fault_id", fault.ID, "status", fault.Status, "version", fault.Version)
	return nil
}

// RecordEmailSent stamps the escalation email time on a fault. Closed faults
// are never stamped.
func (r *FaultRepository) RecordEmailSent(ctx context.Context, faultID string, sentAt time.Time) error {
	query := `
		UPDATE faults SET
			last_email_time = $2,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND status != 'closed' AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, faultID, sentAt)
	if err != nil {
		r.logger.Error("Failed to record email sent", "fault_id", faultID, "error", err)
		return fmt.Errorf("failed to record email sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("fault %s not open: %w", faultID, ErrNotFound)
	}

	return nil
}

// ListForEscalation retrieves non-closed faults whose escalation email is
// due at the given instant: never emailed and overdue, or last emailed at
// least the repeat interval ago.
func (r *FaultRepository) ListForEscalation(ctx context.Context, now time.Time, overdueAfter, emailInterval time.Duration, limit int) ([]*Fault, error) {
	query := `
		SELECT * FROM faults
		WHERE status != 'closed'
		AND deleted_at IS NULL
		AND (
			(last_email_time IS NULL AND reported_time <= $1)
			OR (last_email_time IS NOT NULL AND last_email_time <= $2)
		)
		ORDER BY reported_time ASC
		LIMIT $3`

	overdueCutoff := now.Add(-overdueAfter)
	emailCutoff := now.Add(-emailInterval)

	var faults []*Fault
	err := r.db.SelectContext(ctx, &faults, query, overdueCutoff, emailCutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list faults for escalation", "error", err)
		return nil, fmt.Errorf("failed to list faults for escalation: %w", err)
	}

	return faults, nil
}

// List retrieves faults with filtering and pagination
func (r *FaultRepository) List(ctx context.Context, filter Filter) ([]*Fault, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}
	argIndex := 0

	if filter.Site != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("site = $%d", argIndex))
		args = append(args, filter.Site)
	}
	if filter.Status != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("reported_time >= $%d", argIndex))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("reported_time <= $%d", argIndex))
		args = append(args, *filter.DateTo)
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM faults %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("Failed to count faults", "error", err)
		return nil, 0, fmt.Errorf("failed to count faults: %w", err)
	}

	limitClause := ""
	if filter.Limit > 0 {
		argIndex++
		limitClause = fmt.Sprintf("LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			argIndex++
			limitClause += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, filter.Offset)
		}
	}

	dataQuery := fmt.Sprintf(
		"SELECT * FROM faults %s ORDER BY reported_time DESC %s",
		whereClause, limitClause)

	var faults []*Fault
	if err := r.db.SelectContext(ctx, &faults, dataQuery, args...); err != nil {
		r.logger.Error("Failed to list faults", "error", err)
		return nil, 0, fmt.Errorf("failed to list faults: %w", err)
	}

	return faults, total, nil
}

// GetStats retrieves fault statistics. The overdue count uses the supplied
// cutoff so it agrees with the lifecycle overdue rule.
func (r *FaultRepository) GetStats(ctx context.Context, overdueCutoff time.Time) (*FaultStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN status = 'open' THEN 1 END) as open,
			COUNT(CASE WHEN status = 'in_treatment' THEN 1 END) as in_treatment,
			COUNT(CASE WHEN status = 'closed' THEN 1 END) as closed,
			COUNT(CASE WHEN is_critical THEN 1 END) as critical,
			COUNT(CASE WHEN status != 'closed' AND reported_time <= $1 THEN 1 END) as overdue
		FROM faults
		WHERE deleted_at IS NULL`

	var stats FaultStats
	if err := r.db.GetContext(ctx, &stats, query, overdueCutoff); err != nil {
		r.logger.Error("Failed to get fault stats", "error", err)
		return nil, fmt.Errorf("failed to get fault stats: %w", err)
	}

	return &stats, nil
}

// Delete soft deletes a fault. Reserved for explicit administrative action.
func (r *FaultRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE faults SET
			deleted_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete fault", "fault_id", id, "error", err)
		return fmt.Errorf("failed to delete fault: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("fault %s: %w", id, ErrNotFound)
	}

	r.logger.Info("Fault deleted", "fault_id", id)
	return nil
}
