package schema

import (
	"context"
	"fmt"
	"log/slog"
)

// Repository is the persistence contract the store needs. Implemented by
// database.SchemaRepository.
type Repository interface {
	Get(ctx context.Context, id string) (*Schema, error)
	GetVersion(ctx context.Context, id string, version int) (*Schema, error)
	Create(ctx context.Context, s *Schema) error
	SaveVersion(ctx context.Context, s *Schema) error
	List(ctx context.Context) ([]*Schema, error)
}

// VersionCache caches frozen schema versions. Frozen versions are immutable,
// so entries never need invalidation.
type VersionCache interface {
	GetVersion(ctx context.Context, id string, version int) (*Schema, bool)
	PutVersion(ctx context.Context, s *Schema)
}

// Store owns the inspection type catalogue. All mutations go through it so
// every edit freezes a new schema version before becoming visible.
type Store struct {
	repo   Repository
	cache  VersionCache
	logger *slog.Logger
}

// NewStore creates a schema store. cache may be nil.
func NewStore(repo Repository, cache VersionCache, logger *slog.Logger) *Store {
	return &Store{repo: repo, cache: cache, logger: logger}
}

// Create registers a new inspection type as version 1.
func (s *Store) Create(ctx context.Context, sc *Schema) error {
	sc.Version = 1
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, sc); err != nil {
		return err
	}
	s.logger.Info("Schema created", "schema_id", sc.ID, "name", sc.Name, "category", sc.Category)
	return nil
}

// Get returns the current head version of a schema.
func (s *Store) Get(ctx context.Context, id string) (*Schema, error) {
	return s.repo.Get(ctx, id)
}

// GetVersion returns a frozen schema version, preferring the cache.
func (s *Store) GetVersion(ctx context.Context, id string, version int) (*Schema, error) {
	if s.cache != nil {
		if sc, ok := s.cache.GetVersion(ctx, id, version); ok {
			return sc, nil
		}
	}
	sc, err := s.repo.GetVersion(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.PutVersion(ctx, sc)
	}
	return sc, nil
}

// List returns all inspection types at their head versions.
func (s *Store) List(ctx context.Context) ([]*Schema, error) {
	return s.repo.List(ctx)
}

// UpsertField adds a field to the schema or replaces the definition with the
// same id, freezing a new version.
func (s *Store) UpsertField(ctx context.Context, schemaID string, field FieldDefinition) (*Schema, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, schemaID, func(sc *Schema) error {
		for i, f := range sc.Fields {
			if f.ID == field.ID {
				sc.Fields[i] = field
				return nil
			}
		}
		sc.Fields = append(sc.Fields, field)
		return nil
	})
}

// SetFieldEnabled soft-enables or soft-disables a field. Disabled fields stay
// in the catalogue so historical answer maps keep resolving.
func (s *Store) SetFieldEnabled(ctx context.Context, schemaID, fieldID string, enabled bool) (*Schema, error) {
	return s.mutate(ctx, schemaID, func(sc *Schema) error {
		for i, f := range sc.Fields {
			if f.ID == fieldID {
				sc.Fields[i].Enabled = enabled
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	})
}

// AppendOption adds an option to a single_select field. Fails with
// ErrInvalidFieldKind for any other kind.
func (s *Store) AppendOption(ctx context.Context, schemaID, fieldID, option string) (*Schema, error) {
	if option == "" {
		return nil, fmt.Errorf("option value is required")
	}
	return s.mutate(ctx, schemaID, func(sc *Schema) error {
		for i, f := range sc.Fields {
			if f.ID != fieldID {
				continue
			}
			if f.Kind != FieldSingleSelect {
				return fmt.Errorf("%w: cannot append option to %s field %s", ErrInvalidFieldKind, f.Kind, fieldID)
			}
			if f.HasOption(option) {
				return fmt.Errorf("%w: %s", ErrDuplicateOption, option)
			}
			sc.Fields[i].Options = append(sc.Fields[i].Options, option)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	})
}

// mutate loads the head schema, applies fn, validates and freezes the result
// as a new version.
func (s *Store) mutate(ctx context.Context, schemaID string, fn func(*Schema) error) (*Schema, error) {
	sc, err := s.repo.Get(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	if err := fn(sc); err != nil {
		return nil, err
	}
	sc.Version++
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.SaveVersion(ctx, sc); err != nil {
		return nil, err
	}
	s.logger.Info("Schema version frozen", "schema_id", sc.ID, "version", sc.Version)
	return sc, nil
}
