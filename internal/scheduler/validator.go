package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/conference-scheduler/internal/domain"
)

// Validator checks schedules against the hard and soft constraints for one
// grid and catalog. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	grid    *domain.Grid
	catalog *domain.Catalog
	policy  Policy
}

// NewValidator wires the grid, catalog and policy used for every validation.
func NewValidator(grid *domain.Grid, catalog *domain.Catalog, policy Policy) *Validator {
	return &Validator{grid: grid, catalog: catalog, policy: policy.normalized()}
}

// Grid returns the grid the validator was built for.
func (v *Validator) Grid() *domain.Grid { return v.grid }

// Catalog returns the catalog the validator was built for.
func (v *Validator) Catalog() *domain.Catalog { return v.catalog }

// Policy returns the effective policy.
func (v *Validator) Policy() Policy { return v.policy }

// Validate checks shape and references first, failing with a MalformedInput
// error before any constraint runs. Otherwise it reports every hard violation
// and the soft-constraint breakdown.
func (v *Validator) Validate(s domain.Schedule) (Report, error) {
	if err := v.CheckInput(s); err != nil {
		return Report{}, err
	}

	var violations []Violation
	violations = append(violations, v.coverage(s)...)
	violations = append(violations, v.fill(s)...)
	violations = append(violations, v.speakerConflicts(s)...)
	violations = append(violations, v.roomExclusivity(s)...)
	if v.policy.EnforceTrackCollision {
		violations = append(violations, v.trackCollisions(s)...)
	}

	report := v.score(s)
	report.Violations = violations
	return report, nil
}

// CheckInput verifies the schedule matches the grid and references only
// known sessions.
func (v *Validator) CheckInput(s domain.Schedule) error {
	if err := v.grid.CheckShape(s); err != nil {
		return err
	}
	return v.catalog.CheckReferences(v.grid, s)
}

// CoverageAndFill runs only the cardinality rules.
func (v *Validator) CoverageAndFill(s domain.Schedule) []Violation {
	return append(v.coverage(s), v.fill(s)...)
}

func (v *Validator) coverage(s domain.Schedule) []Violation {
	placements := s.Placements()

	var violations []Violation
	var missing []string
	for _, id := range v.catalog.SessionIDs() {
		if len(placements[id]) == 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		violations = append(violations, Violation{
			Rule:       RuleCoverage,
			Message:    fmt.Sprintf("%d session(s) not scheduled: %s", len(missing), strings.Join(missing, ", ")),
			SessionIDs: missing,
		})
	}

	duplicated := make([]string, 0)
	for id, cells := range placements {
		if len(cells) > 1 {
			duplicated = append(duplicated, id)
		}
	}
	sort.Strings(duplicated)
	for _, id := range duplicated {
		cells := placements[id]
		described := make([]string, 0, len(cells))
		for _, c := range cells {
			described = append(described, v.grid.Describe(c))
		}
		violations = append(violations, Violation{
			Rule:       RuleCoverage,
			Message:    fmt.Sprintf("session %s is scheduled %d times: %s", id, len(cells), strings.Join(described, ", ")),
			Cells:      v.refs(append([]domain.Cell(nil), cells...)),
			SessionIDs: []string{id},
		})
	}
	return violations
}

func (v *Validator) fill(s domain.Schedule) []Violation {
	empty := s.EmptyCells()
	if len(empty) == 0 {
		return nil
	}
	return []Violation{{
		Rule:    RuleFill,
		Message: fmt.Sprintf("%d of %d cells are empty", len(empty), s.CellCount()),
		Cells:   v.refs(empty),
	}}
}

func (v *Validator) roomExclusivity(s domain.Schedule) []Violation {
	var violations []Violation
	for slot := 0; slot < s.SlotCount(); slot++ {
		rooms := make(map[string][]domain.Cell)
		var order []string
		for room, id := range s.Slot(slot) {
			if id == "" {
				continue
			}
			if _, ok := rooms[id]; !ok {
				order = append(order, id)
			}
			rooms[id] = append(rooms[id], domain.Cell{Slot: slot, Room: room})
		}
		for _, id := range order {
			cells := rooms[id]
			if len(cells) < 2 {
				continue
			}
			violations = append(violations, Violation{
				Rule:       RuleRoomExclusivity,
				Message:    fmt.Sprintf("session %s occupies %d rooms in %s", id, len(cells), v.grid.Slot(slot).Label()),
				Cells:      v.refs(cells),
				SessionIDs: []string{id},
				Slots:      []int{v.grid.Slot(slot).Ordinal},
			})
		}
	}
	return violations
}
