// Package diff computes per-cell differences between two schedules of the
// same shape and applies them back.
package diff

import (
	"errors"
	"fmt"

	"github.com/example/conference-scheduler/internal/domain"
)

// Kind classifies how one cell changed.
type Kind string

const (
	Unchanged Kind = "unchanged"
	// Added marks a cell whose new session did not appear anywhere before.
	Added Kind = "added"
	// Removed marks a cell emptied of a session that no longer appears.
	Removed Kind = "removed"
	// MovedFrom marks a cell emptied of a session that now sits elsewhere.
	MovedFrom Kind = "moved_from"
	// MovedTo marks a cell receiving a session that previously sat elsewhere.
	MovedTo Kind = "moved_to"
)

// ErrConflict is returned when a diff is applied to a schedule that does not
// hold the diff's before values.
var ErrConflict = errors.New("diff does not apply to schedule")

// ConflictError names the first cell whose content differs from the diff.
type ConflictError struct {
	Cell domain.Cell
	Want string
	Got  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cell (%d,%d) holds %q, diff expects %q", e.Cell.Slot, e.Cell.Room, e.Got, e.Want)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// CellDiff is the change of one cell.
type CellDiff struct {
	Cell   domain.Cell `json:"cell"`
	Kind   Kind        `json:"kind"`
	Before string      `json:"before,omitempty"`
	After  string      `json:"after,omitempty"`
}

// Diff lists cell changes from one schedule to another. A full diff holds
// every cell in slot-major order; a restricted diff only the cells asked for.
type Diff struct {
	Slots int        `json:"slots"`
	Rooms int        `json:"rooms"`
	Cells []CellDiff `json:"cells"`

	from idSet
	to   idSet
}

type idSet map[string]struct{}

func idsOf(s domain.Schedule) idSet {
	ids := make(idSet)
	s.Each(func(_ domain.Cell, id string) {
		if id != "" {
			ids[id] = struct{}{}
		}
	})
	return ids
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// Compute diffs every cell of from against to.
func Compute(from, to domain.Schedule) (Diff, error) {
	if err := sameShape(from, to); err != nil {
		return Diff{}, err
	}
	d := newDiff(from, to)
	from.Each(func(c domain.Cell, before string) {
		d.Cells = append(d.Cells, d.classify(c, before, to.At(c)))
	})
	return d, nil
}

// ComputeCells diffs only the listed cells. Classification still considers
// the whole schedules, so a session swapped between two cells reads as a
// move in both.
func ComputeCells(from, to domain.Schedule, cells ...domain.Cell) (Diff, error) {
	if err := sameShape(from, to); err != nil {
		return Diff{}, err
	}
	d := newDiff(from, to)
	for _, c := range cells {
		if !from.Contains(c) {
			return Diff{}, fmt.Errorf("%w: cell (%d,%d) outside %dx%d schedule", domain.ErrMalformedInput, c.Slot, c.Room, d.Slots, d.Rooms)
		}
		d.Cells = append(d.Cells, d.classify(c, from.At(c), to.At(c)))
	}
	return d, nil
}

func newDiff(from, to domain.Schedule) Diff {
	return Diff{
		Slots: from.SlotCount(),
		Rooms: from.RoomCount(),
		from:  idsOf(from),
		to:    idsOf(to),
	}
}

func (d Diff) classify(c domain.Cell, before, after string) CellDiff {
	out := CellDiff{Cell: c, Before: before, After: after}
	switch {
	case before == after:
		out.Kind = Unchanged
	case after != "" && d.from.has(after):
		out.Kind = MovedTo
	case after != "":
		out.Kind = Added
	case d.to.has(before):
		out.Kind = MovedFrom
	default:
		out.Kind = Removed
	}
	return out
}

// Apply writes the diff's after values onto base. Every listed cell must hold
// the diff's before value; otherwise a ConflictError is returned.
func Apply(d Diff, base domain.Schedule) (domain.Schedule, error) {
	if base.SlotCount() != d.Slots || base.RoomCount() != d.Rooms {
		return domain.Schedule{}, &domain.ShapeError{
			WantSlots: d.Slots, WantRooms: d.Rooms,
			GotSlots: base.SlotCount(), GotRooms: base.RoomCount(),
		}
	}
	rows := base.Rows()
	for _, cd := range d.Cells {
		if !base.Contains(cd.Cell) {
			return domain.Schedule{}, fmt.Errorf("%w: cell (%d,%d) outside schedule", domain.ErrMalformedInput, cd.Cell.Slot, cd.Cell.Room)
		}
		if got := rows[cd.Cell.Slot][cd.Cell.Room]; got != cd.Before {
			return domain.Schedule{}, &ConflictError{Cell: cd.Cell, Want: cd.Before, Got: got}
		}
		rows[cd.Cell.Slot][cd.Cell.Room] = cd.After
	}
	return domain.ScheduleFromRows(rows)
}

// Invert returns the diff that undoes d: applying d and then Invert(d)
// restores the original schedule.
func Invert(d Diff) Diff {
	out := Diff{
		Slots: d.Slots,
		Rooms: d.Rooms,
		Cells: make([]CellDiff, 0, len(d.Cells)),
		from:  d.to,
		to:    d.from,
	}
	for _, cd := range d.Cells {
		out.Cells = append(out.Cells, out.classify(cd.Cell, cd.After, cd.Before))
	}
	return out
}

// Changed returns the cells whose kind is not Unchanged.
func (d Diff) Changed() []CellDiff {
	var out []CellDiff
	for _, cd := range d.Cells {
		if cd.Kind != Unchanged {
			out = append(out, cd)
		}
	}
	return out
}

// Summary counts cells per kind.
func (d Diff) Summary() map[Kind]int {
	out := make(map[Kind]int)
	for _, cd := range d.Cells {
		out[cd.Kind]++
	}
	return out
}

// Empty reports whether no cell changed.
func (d Diff) Empty() bool {
	return len(d.Changed()) == 0
}

func sameShape(a, b domain.Schedule) error {
	if a.SlotCount() != b.SlotCount() || a.RoomCount() != b.RoomCount() {
		return &domain.ShapeError{
			WantSlots: a.SlotCount(), WantRooms: a.RoomCount(),
			GotSlots: b.SlotCount(), GotRooms: b.RoomCount(),
		}
	}
	return nil
}
