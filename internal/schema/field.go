package schema

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldKind identifies the value type of a form field.
type FieldKind string

const (
	FieldShortText    FieldKind = "short_text"
	FieldLongText     FieldKind = "long_text"
	FieldDate         FieldKind = "date"
	FieldTime         FieldKind = "time"
	FieldBoolean      FieldKind = "boolean"
	FieldSingleSelect FieldKind = "single_select"
)

// Layouts accepted for date and time field values.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidFieldKind = errors.New("operation not valid for field kind")
	ErrFieldNotFound    = errors.New("field not found in schema")
	ErrDuplicateField   = errors.New("field id already present in schema")
	ErrDuplicateOption  = errors.New("option already present on field")
)

// Valid reports whether k is one of the closed set of field kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldShortText, FieldLongText, FieldDate, FieldTime, FieldBoolean, FieldSingleSelect:
		return true
	}
	return false
}

// FieldDefinition describes a single typed field of an inspection form.
// Options is populated only for single_select fields; use the constructors
// so invalid combinations cannot be built.
type FieldDefinition struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Options  []string  `json:"options,omitempty"`
	AutoFill bool      `json:"auto_fill"`
	Required bool      `json:"required"`
	Enabled  bool      `json:"enabled"`
}

// NewField creates a field of any kind except single_select.
func NewField(id, label string, kind FieldKind) (FieldDefinition, error) {
	if kind == FieldSingleSelect {
		return FieldDefinition{}, fmt.Errorf("%w: use NewSingleSelectField for %s", ErrInvalidFieldKind, kind)
	}
	f := FieldDefinition{ID: id, Label: label, Kind: kind, Enabled: true}
	if err := f.Validate(); err != nil {
		return FieldDefinition{}, err
	}
	return f, nil
}

// NewSingleSelectField creates a single_select field with its option list.
func NewSingleSelectField(id, label string, options []string) (FieldDefinition, error) {
	f := FieldDefinition{ID: id, Label: label, Kind: FieldSingleSelect, Options: options, Enabled: true}
	if err := f.Validate(); err != nil {
		return FieldDefinition{}, err
	}
	return f, nil
}

// Validate checks the structural invariants of a field definition. It exists
// for definitions that arrive from storage or the admin API rather than the
// constructors.
func (f FieldDefinition) Validate() error {
	if f.ID == "" {
		return errors.New("field id is required")
	}
	if f.Label == "" {
		return fmt.Errorf("field %s: label is required", f.ID)
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("field %s: unknown kind %q", f.ID, f.Kind)
	}
	if f.Kind == FieldSingleSelect && len(f.Options) == 0 {
		return fmt.Errorf("field %s: single_select requires at least one option", f.ID)
	}
	if f.Kind != FieldSingleSelect && len(f.Options) > 0 {
		return fmt.Errorf("field %s: options only allowed on single_select, got kind %q", f.ID, f.Kind)
	}
	return nil
}

// HasOption reports whether value is one of the field's options.
func (f FieldDefinition) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// FieldList is an ordered list of field definitions stored as a JSONB column.
type FieldList []FieldDefinition

// Value implements driver.Valuer for JSONB storage.
func (l FieldList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]FieldDefinition{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage.
func (l *FieldList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into FieldList", value)
	}
}
