package schema

import (
	"errors"
	"fmt"
	"time"
)

// Category distinguishes routine inspections from drills.
type Category string

const (
	CategoryInspection Category = "inspection"
	CategoryDrill      Category = "drill"
)

var ErrSchemaNotFound = errors.New("inspection type schema not found")

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryInspection || c == CategoryDrill
}

// Schema is an administrator-defined inspection type: an ordered, versioned
// list of typed fields. Version 1 is written on creation and every mutation
// freezes a new immutable version, so historical inspections stay
// interpretable against the exact field list they were submitted under.
type Schema struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  Category  `db:"category" json:"category"`
	Version   int       `db:"version" json:"version"`
	Fields    FieldList `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks schema-level invariants: category, field validity and
// field id uniqueness.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return errors.New("schema name is required")
	}
	if !s.Category.Valid() {
		return fmt.Errorf("unknown schema category %q", s.Category)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateField, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// Field returns the definition for id, whether enabled or not.
func (s *Schema) Field(id string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// EnabledFields returns the fields currently active on the form, in order.
func (s *Schema) EnabledFields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// AutoFillFields returns the enabled fields whose values the system supplies
// (site, date, inspector) rather than the user.
func (s *Schema) AutoFillFields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Enabled && f.AutoFill {
			out = append(out, f)
		}
	}
	return out
}
