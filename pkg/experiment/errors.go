package experiment

import "fmt"

// NotFoundError is returned when no stored state exists for an experiment.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no stored metadata for experiment %s", e.Name)
}

// UnknownFieldError is returned by Edit for a field name outside the
// editable surface.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// InvalidValueError is returned when a value fails validation for a field.
type InvalidValueError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Field, e.Reason)
}
