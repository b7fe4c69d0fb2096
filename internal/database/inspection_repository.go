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

// InspectionRepository handles inspection and fault link data operations
type InspectionRepository struct {
	BaseRepository
	logger    *slog.Logger
	faultRepo *FaultRepository
}

// NewInspectionRepository creates a new inspection repository
func NewInspectionRepository(db *sqlx.DB, faultRepo *FaultRepository, logger *slog.Logger) *InspectionRepository {
	return &InspectionRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
		faultRepo:      faultRepo,
	}
}

// PersistSubmission commits an inspection together with the faults it raised
// and their links as one atomic unit. No inspection exists without its links
// and no fault created here exists without at least one link.
func (r *InspectionRepository) PersistSubmission(ctx context.Context, inspection *Inspection, newFaults []*Fault, links []FaultLink) error {
	err := r.Transaction(func(tx *sqlx.Tx) error {
		inspection.CreatedAt = time.Now()
		inspection.UpdatedAt = inspection.CreatedAt

		insertInspection := `
			INSERT INTO inspections (
				id, site, schema_id, schema_version, inspector, submitted_at,
				answers, created_at, updated_at
			) VALUES (
				:id, :site, :schema_id, :schema_version, :inspector, :submitted_at,
				:answers, :created_at, :updated_at
			)`
		if _, err := tx.NamedExecContext(ctx, insertInspection, inspection); err != nil {
			return fmt.Errorf("failed to insert inspection: %w", err)
		}

		for _, fault := range newFaults {
			if err := r.faultRepo.CreateTx(ctx, tx, fault); err != nil {
				return err
			}
		}

		insertLink := `
			INSERT INTO fault_links (inspection_id, fault_id, field_id, created_at)
			VALUES (:inspection_id, :fault_id, :field_id, :created_at)`
		for i := range links {
			links[i].CreatedAt = time.Now()
			if _, err := tx.NamedExecContext(ctx, insertLink, links[i]); err != nil {
				return fmt.Errorf("failed to insert fault link: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		r.logger.Error("Failed to persist inspection submission",
			"inspection_id", inspection.ID, "error", err)
		return err
	}

	r.logger.Info("Inspection submitted",
		"inspection_id", inspection.ID,
		"site", inspection.Site,
		"schema_id", inspection.SchemaID,
		"schema_version", inspection.SchemaVersion,
		"new_faults", len(newFaults),
		"links", len(links))
	return nil
}

// GetByID retrieves an inspection by ID
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*Inspection, error) {
	query := `
		SELECT * FROM inspections
		WHERE id = $1 AND deleted_at IS NULL`

	var inspection Inspection
	err := r.db.GetContext(ctx, &inspection, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inspection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get inspection by ID", "inspection_id", id, "error", err)
		return nil, fmt.Errorf("failed to get inspection by ID: %w", err)
	}

	return &inspection, nil
}

// GetLinks retrieves the fault links of an inspection
func (r *InspectionRepository) GetLinks(ctx context.Context, inspectionID string) ([]FaultLink, error) {
	query := `
		SELECT * FROM fault_links
		WHERE inspection_id = $1
		ORDER BY created_at ASC`

	var links []FaultLink
	if err := r.db.SelectContext(ctx, &links, query, inspectionID); err != nil {
		r.logger.Error("Failed to get fault links", "inspection_id", inspectionID, "error", err)
		return nil, fmt.Errorf("failed to get fault links: %w", err)
	}

	return links, nil
}

// GetLinksByFault retrieves the inspection links pointing at a fault
func (r *InspectionRepository) GetLinksByFault(ctx context.Context, faultID string) ([]FaultLink, error) {
	query := `
		SELECT * FROM fault_links
		WHERE fault_id = $1
		ORDER BY created_at ASC`

	var links []FaultLink
	if err := r.db.SelectContext(ctx, &links, query, faultID); err != nil {
		r.logger.Error("Failed to get fault links by fault", "fault_id", faultID, "error", err)
		return nil, fmt.Errorf("failed to get fault links by fault: %w", err)
	}

	return links, nil
}

// List retrieves inspections with filtering and pagination
func (r *InspectionRepository) List(ctx context.Context, filter Filter) ([]*Inspection, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}
	argIndex := 0

	if filter.Site != "" {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("site = $%d", argIndex))
		args = append(args, filter.Site)
	}
	if filter.DateFrom != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("submitted_at >= $%d", argIndex))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		argIndex++
		conditions = append(conditions, fmt.Sprintf("submitted_at <= $%d", argIndex))
		args = append(args, *filter.DateTo)
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM inspections %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("Failed to count inspections", "error", err)
		return nil, 0, fmt.Errorf("failed to count inspections: %w", err)
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
		"SELECT * FROM inspections %s ORDER BY submitted_at DESC %s",
		whereClause, limitClause)

	var inspections []*Inspection
	if err := r.db.SelectContext(ctx, &inspections, dataQuery, args...); err != nil {
		r.logger.Error("Failed to list inspections", "error", err)
		return nil, 0, fmt.Errorf("failed to list inspections: %w", err)
	}

	return inspections, total, nil
}
