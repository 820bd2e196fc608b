package diff

import (
	"fmt"

	"github.com/example/conference-scheduler/internal/domain"
)

// Entry is a CellDiff addressed by slot ordinal and room id.
type Entry struct {
	Cell   domain.CellRef `json:"cell"`
	Kind   Kind           `json:"kind"`
	Before string         `json:"before,omitempty"`
	After  string         `json:"after,omitempty"`
}

// Entries converts the diff's cells to grid references. When onlyChanged is
// set unchanged cells are skipped.
func (d Diff) Entries(g *domain.Grid, onlyChanged bool) []Entry {
	out := make([]Entry, 0, len(d.Cells))
	for _, cd := range d.Cells {
		if onlyChanged && cd.Kind == Unchanged {
			continue
		}
		out = append(out, Entry{Cell: g.Ref(cd.Cell), Kind: cd.Kind, Before: cd.Before, After: cd.After})
	}
	return out
}

// Describe renders one changed cell for humans, e.g.
// "Slot 1 / Room A: S1 -> S3 (moved_to)".
func Describe(g *domain.Grid, cd CellDiff) string {
	return fmt.Sprintf("%s: %s -> %s (%s)", g.Describe(cd.Cell), orEmpty(cd.Before), orEmpty(cd.After), cd.Kind)
}

func orEmpty(id string) string {
	if id == "" {
		return "(empty)"
	}
	return id
}
