package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when a schedule or request references an
	// identifier the catalog does not know, or its shape does not match the grid.
	ErrMalformedInput = errors.New("domain: malformed input")
	// ErrInvariantBreach signals an internal consistency failure. It indicates a
	// defect in the engine and must abort the surrounding operation.
	ErrInvariantBreach = errors.New("domain: invariant breach")
)

// ReferenceKind names the category of an unknown identifier.
type ReferenceKind string

const (
	ReferenceSession ReferenceKind = "session"
	ReferenceSpeaker ReferenceKind = "speaker"
	ReferenceTrack   ReferenceKind = "track"
	ReferenceRoom    ReferenceKind = "room"
	ReferenceSlot    ReferenceKind = "slot"
)

// ReferenceError reports an identifier unknown to the domain model.
type ReferenceError struct {
	Kind ReferenceKind
	ID   string
	// Where optionally locates the reference, e.g. "slot 3 / room-2".
	Where string
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("unknown %s %q at %s", e.Kind, e.ID, e.Where)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
}

// Is reports ErrMalformedInput so callers can branch on the sentinel.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrMalformedInput
}

// ShapeError reports a schedule whose dimensions do not match the grid.
type ShapeError struct {
	WantSlots, WantRooms int
	GotSlots, GotRooms   int
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("schedule shape %dx%d does not match grid %dx%d", e.GotSlots, e.GotRooms, e.WantSlots, e.WantRooms)
}

// Is reports ErrMalformedInput.
func (e *ShapeError) Is(target error) bool {
	return target == ErrMalformedInput
}

// InvariantError describes which internal check failed.
type InvariantError struct {
	Check  string
	Detail string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Check, e.Detail)
}

// Is reports ErrInvariantBreach.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantBreach
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
