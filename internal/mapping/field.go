// Package mapping applies declarative property definitions to a flattened
// response and writes the results into a caller-owned variable set.
package mapping

import (
	"errors"
	"fmt"
)

var (
	ErrFieldMissing   = errors.New("source field not present")
	ErrFieldNull      = errors.New("source field is null")
	ErrNotConvertible = errors.New("value not convertible")
	ErrCalculation    = errors.New("calculation failed")
	ErrInvalidField   = errors.New("invalid field definition")
)

// Type is the value type a field is coerced to before it is written.
type Type string

const (
	TypeNumber    Type = "number"
	TypeInteger   Type = "integer"
	TypeString    Type = "string"
	TypeBoolean   Type = "boolean"
	TypeTimestamp Type = "timestamp"
)

func (t Type) valid() bool {
	switch t {
	case "", TypeNumber, TypeInteger, TypeString, TypeBoolean, TypeTimestamp:
		return true
	}
	return false
}

// Field maps one source key of the flattened response to one variable.
// Source may be empty when Calculation derives the value from other variables.
type Field struct {
	Name        string `json:"name" mapstructure:"name"`
	Source      string `json:"source,omitempty" mapstructure:"source"`
	Type        Type   `json:"type,omitempty" mapstructure:"type"`
	Calculation string `json:"calculation,omitempty" mapstructure:"calculation"`
	Decimals    *int   `json:"decimals,omitempty" mapstructure:"decimals"`
	Unit        string `json:"unit,omitempty" mapstructure:"unit"`
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidField)
	}
	if f.Source == "" && f.Calculation == "" {
		return fmt.Errorf("%w: %s needs a source or a calculation", ErrInvalidField, f.Name)
	}
	if !f.Type.valid() {
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidField, f.Name, f.Type)
	}
	if f.Decimals != nil && (*f.Decimals < 0 || *f.Decimals > 15) {
		return fmt.Errorf("%w: %s decimals out of range", ErrInvalidField, f.Name)
	}
	return nil
}

// CommandProperty is a group of fields fed by one request. Command is the URL
// template of that request.
type CommandProperty struct {
	Command string  `json:"command" mapstructure:"command"`
	Fields  []Field `json:"fields" mapstructure:"fields"`
}

// Variables is the output variable set. The mapper only adds or overwrites
// the entries it produces.
type Variables map[string]any

// Skip records a field that was not written and why.
type Skip struct {
	Field  string
	Reason error
}

// Report summarises one Apply call.
type Report struct {
	Written []string
	Skipped []Skip
}

// SkippedNames returns the names of the skipped fields in processing order.
func (r Report) SkippedNames() []string {
	names := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		names[i] = s.Field
	}
	return names
}

// Merge appends o to r.
func (r *Report) Merge(o Report) {
	r.Written = append(r.Written, o.Written...)
	r.Skipped = append(r.Skipped, o.Skipped...)
}

// Reason returns a short label for a skip error, suitable for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrFieldMissing):
		return "missing"
	case errors.Is(err, ErrFieldNull):
		return "null"
	case errors.Is(err, ErrNotConvertible):
		return "not_convertible"
	case errors.Is(err, ErrCalculation):
		return "calculation"
	case errors.Is(err, ErrInvalidField):
		return "invalid"
	default:
		return "other"
	}
}
