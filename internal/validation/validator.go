// Package validation decides whether a candidate answer map satisfies a
// frozen inspection schema. All violations are collected rather than
// short-circuited so a caller can surface every problem at once.
package validation

import (
	"fmt"
	"sort"
	"time"

	"github.com/sitewatch/inspection-engine/internal/schema"
)

// Code classifies a field-level validation failure.
type Code string

const (
	MissingRequired Code = "missing_required"
	UnknownField    Code = "unknown_field"
	InvalidOption   Code = "invalid_option"
	InvalidValue    Code = "invalid_value"
)

// FieldError is a single user-correctable violation.
type FieldError struct {
	FieldID string `json:"field_id"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
}

// Result is the outcome of validating an answer map. BooleanFailures lists
// the pass/fail fields answered false; each obligates the caller to supply
// fault-resolution data before the submission can commit. A failure is not
// itself an error.
type Result struct {
	Errors          []FieldError `json:"errors,omitempty"`
	BooleanFailures []string     `json:"boolean_failures,omitempty"`
}

// OK reports whether the answer map passed validation.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks answers against the enabled fields of sc. Schema order
// drives field checks; unknown keys are reported in sorted order so results
// are deterministic.
func Validate(sc *schema.Schema, answers map[string]string) Result {
	var result Result

	for _, field := range sc.EnabledFields() {
		value, present := answers[field.ID]
		if !present || value == "" {
			if field.Required {
				result.Errors = append(result.Errors, FieldError{
					FieldID: field.ID,
					Code:    MissingRequired,
					Message: fmt.Sprintf("required field %q has no value", field.Label),
				})
			}
			continue
		}
		result = checkValue(result, field, value)
	}

	unknown := make([]string, 0)
	for key := range answers {
		field, found := sc.Field(key)
		if !found || !field.Enabled {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		result.Errors = append(result.Errors, FieldError{
			FieldID: key,
			Code:    UnknownField,
			Message: fmt.Sprintf("answer refers to unknown or disabled field %q", key),
		})
	}

	return result
}

func checkValue(result Result, field schema.FieldDefinition, value string) Result {
	switch field.Kind {
	case schema.FieldBoolean:
		switch value {
		case "true":
			// passing check, nothing to do
		case "false":
			result.BooleanFailures = append(result.BooleanFailures, field.ID)
		default:
			result.Errors = append(result.Errors, FieldError{
				FieldID: field.ID,
				Code:    InvalidValue,
				Message: fmt.Sprintf("boolean field requires true or false, got %q", value),
			})
		}
	case schema.FieldSingleSelect:
		if !field.HasOption(value) {
			result.Errors = append(result.Errors, FieldError{
				FieldID: field.ID,
				Code:    InvalidOption,
				Message: fmt.Sprintf("%q is not an option of field %q", value, field.Label),
			})
		}
	case schema.FieldDate:
		if _, err := time.Parse(schema.DateLayout, value); err != nil {
			result.Errors = append(result.Errors, FieldError{
				FieldID: field.ID,
				Code:    InvalidValue,
				Message: fmt.Sprintf("date field requires %s format, got %q", schema.DateLayout, value),
			})
		}
	case schema.FieldTime:
		if _, err := time.Parse(schema.TimeLayout, value); err != nil {
			result.Errors = append(result.Errors, FieldError{
				FieldID: field.ID,
				Code:    InvalidValue,
				Message: fmt.Sprintf("time field requires %s format, got %q", schema.TimeLayout, value),
			})
		}
	case schema.FieldShortText, schema.FieldLongText:
		// free text, any non-empty value passes
	}
	return result
}
