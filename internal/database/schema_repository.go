package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sitewatch/inspection-engine/internal/schema"
)

// SchemaRepository handles inspection type schema persistence. The schemas
// table holds the mutable head; every version, head included, also lives as
// an immutable row in schema_versions.
type SchemaRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewSchemaRepository creates a new schema repository
func NewSchemaRepository(db *sqlx.DB, logger *slog.Logger) *SchemaRepository {
	return &SchemaRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// schemaRow maps the schemas and schema_versions tables
type schemaRow struct {
	ID        string           `db:"id"`
	Name      string           `db:"name"`
	Category  string           `db:"category"`
	Version   int              `db:"version"`
	Fields    schema.FieldList `db:"fields"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}

func (row *schemaRow) toSchema() *schema.Schema {
	return &schema.Schema{
		ID:        row.ID,
		Name:      row.Name,
		Category:  schema.Category(row.Category),
		Version:   row.Version,
		Fields:    row.Fields,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// Get retrieves the head version of a schema
func (r *SchemaRepository) Get(ctx context.Context, id string) (*schema.Schema, error) {
	query := `
		SELECT id, name, category, version, fields, created_at, updated_at
		FROM schemas
		WHERE id = $1 AND deleted_at IS NULL`

	var row schemaRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s: %w", id, schema.ErrSchemaNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get schema", "schema_id", id, "error", err)
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	return row.toSchema(), nil
}

// GetVersion retrieves a frozen schema version
func (r *SchemaRepository) GetVersion(ctx context.Context, id string, version int) (*schema.Schema, error) {
	query := `
		SELECT schema_id AS id, name, category, version, fields, created_at, updated_at
		FROM schema_versions
		WHERE schema_id = $1 AND version = $2`

	var row schemaRow
	err := r.db.GetContext(ctx, &row, query, id, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s version %d: %w", id, version, schema.ErrSchemaNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get schema version", "schema_id", id, "version", version, "error", err)
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	return row.toSchema(), nil
}

// Create inserts a new schema at version 1, freezing the initial version row
// in the same transaction
func (r *SchemaRepository) Create(ctx context.Context, s *schema.Schema) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	err := r.Transaction(func(tx *sqlx.Tx) error {
		insertHead := `
			INSERT INTO schemas (id, name, category, version, fields, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, insertHead,
			s.ID, s.Name, string(s.Category), s.Version, s.Fields, s.CreatedAt, s.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert schema: %w", err)
		}
		return r.insertVersionTx(ctx, tx, s)
	})
	if err != nil {
		r.logger.Error("Failed to create schema", "schema_id", s.ID, "error", err)
		return err
	}

	return nil
}

// SaveVersion persists an edited schema as its new head and freezes the
// version row atomically. The head update is guarded on the previous version
// so concurrent administrative edits cannot interleave.
func (r *SchemaRepository) SaveVersion(ctx context.Context, s *schema.Schema) error {
	s.UpdatedAt = time.Now()

	err := r.Transaction(func(tx *sqlx.Tx) error {
		updateHead := `
			UPDATE schemas SET
				version = $2,
				fields = $3,
				updated_at = $4
			WHERE id = $1 AND version = $5 AND deleted_at IS NULL`

		result, err := tx.ExecContext(ctx, updateHead,
			s.ID, s.Version, s.Fields, s.UpdatedAt, s.Version-1)
		if err != nil {
			return fmt.Errorf("failed to update schema head: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("schema %s at version %d: %w", s.ID, s.Version-1, ErrConflict)
		}

		return r.insertVersionTx(ctx, tx, s)
	})
	if err != nil {
		r.logger.Error("Failed to save schema version", "schema_id", s.ID, "version", s.Version, "error", err)
		return err
	}

	return nil
}

func (r *SchemaRepository) insertVersionTx(ctx context.Context, tx *sqlx.Tx, s *schema.Schema) error {
	insertVersion := `
		INSERT INTO schema_versions (schema_id, version, name, category, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertVersion,
		s.ID, s.Version, s.Name, string(s.Category), s.Fields, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to freeze schema version: %w", err)
	}
	return nil
}

// List retrieves all schemas at their head versions
func (r *SchemaRepository) List(ctx context.Context) ([]*schema.Schema, error) {
	query := `
		SELECT id, name, category, version, fields, created_at, updated_at
		FROM schemas
		WHERE deleted_at IS NULL
		ORDER BY name ASC`

	var rows []schemaRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to list schemas", "error", err)
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	schemas := make([]*schema.Schema, 0, len(rows))
	for i := range rows {
		schemas = append(schemas, rows[i].toSchema())
	}

	return schemas, nil
}
