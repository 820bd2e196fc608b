package application

import (
	"errors"
	"fmt"

	"github.com/example/conference-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested version does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a version label is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrHardConstraint is returned when a schedule breaks a hard rule and
	// therefore cannot be stored.
	ErrHardConstraint = errors.New("application: hard constraint violated")
	// ErrEmptyHistory is returned by Latest before any version is stored.
	ErrEmptyHistory = fmt.Errorf("%w: history is empty", ErrNotFound)
	// ErrStaleBase is returned when a swap names a base that is no longer
	// the latest version.
	ErrStaleBase = errors.New("application: stale base version")
	// ErrNoValidator is returned by operations that need a validator when the
	// service was built without one.
	ErrNoValidator = errors.New("application: no validator configured")
)

// StaleBaseError names the requested base and the current latest version.
type StaleBaseError struct {
	Base   int
	Latest int
}

// Error implements the error interface.
func (e *StaleBaseError) Error() string {
	return fmt.Sprintf("swap base version %d is stale, latest is %d", e.Base, e.Latest)
}

// Is reports ErrStaleBase.
func (e *StaleBaseError) Is(target error) bool {
	return target == ErrStaleBase
}

// HardConstraintError carries the full report of a refused schedule so every
// problem can be surfaced at once.
type HardConstraintError struct {
	Report scheduler.Report
}

// Error implements the error interface.
func (e *HardConstraintError) Error() string {
	if e == nil {
		return ""
	}
	n := len(e.Report.Violations)
	if n == 1 {
		return fmt.Sprintf("schedule refused: 1 hard violation (%s)", e.Report.Violations[0].Message)
	}
	return fmt.Sprintf("schedule refused: %d hard violations", n)
}

// Is reports ErrHardConstraint.
func (e *HardConstraintError) Is(target error) bool {
	return target == ErrHardConstraint
}

// ValidationError captures field level issues with version metadata.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
