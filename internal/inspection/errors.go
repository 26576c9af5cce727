package inspection

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller input the engine refused. No state changes when
// it is returned.
var ErrValidation = errors.New("validation failed")

// ErrSeverityRegression is returned when a milder grade is added after a more
// severe one has been recorded for the same item.
var ErrSeverityRegression = fmt.Errorf("%w: severity regression", ErrValidation)

// ErrNotFound is returned by lookups of ids the catalog or aggregate does not
// know. Mutations on unknown ids are no-ops instead.
var ErrNotFound = errors.New("not found")

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
