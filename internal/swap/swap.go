// Package swap validates proposed two-cell exchanges against a base schedule.
package swap

import (
	"fmt"

	"github.com/example/conference-scheduler/internal/diff"
	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// Request names a base version and two cells. When both cells are occupied
// their sessions are exchanged; when one is empty the other's session moves
// into it.
type Request struct {
	BaseVersion int            `json:"base_version"`
	First       domain.CellRef `json:"first"`
	Second      domain.CellRef `json:"second"`
}

// Inverse returns the request that undoes r once r has been applied. The
// result targets the version r produced.
func (r Request) Inverse(applied int) Request {
	return Request{BaseVersion: applied, First: r.Second, Second: r.First}
}

// Rejection explains why a swap was refused.
type Rejection struct {
	Rule      scheduler.Rule `json:"rule"`
	SessionID string         `json:"session_id"`
	SpeakerID string         `json:"speaker_id,omitempty"`
	TrackID   string         `json:"track_id,omitempty"`
	// ClashesWith is the session already occupying the target slot.
	ClashesWith string `json:"clashes_with"`
	Slot        int    `json:"slot"`
	Message     string `json:"message"`
}

// Result is the outcome of validating a swap. Schedule and Diff are set only
// when the swap is accepted.
type Result struct {
	Accepted bool            `json:"accepted"`
	Schedule domain.Schedule `json:"schedule"`
	Diff     diff.Diff       `json:"diff"`
	Reasons  []Rejection     `json:"reasons,omitempty"`
}

// Validate builds the candidate schedule and checks only the sessions that
// change slot: their speakers must not already present in the new slot, and
// when the policy enforces it, their track must not already run there.
//
// MalformedInput is returned for unknown or degenerate cells; InvariantBreach
// when the candidate changes the schedule's cardinality. A refused swap is
// not an error: it is reported through Result.Reasons.
func Validate(v *scheduler.Validator, base domain.Schedule, req Request) (Result, error) {
	if err := v.CheckInput(base); err != nil {
		return Result{}, err
	}
	grid := v.Grid()
	first, err := grid.Resolve(req.First)
	if err != nil {
		return Result{}, fmt.Errorf("first cell: %w", err)
	}
	second, err := grid.Resolve(req.Second)
	if err != nil {
		return Result{}, fmt.Errorf("second cell: %w", err)
	}
	if first == second {
		return Result{}, fmt.Errorf("%w: both cells are %s", domain.ErrMalformedInput, req.First)
	}
	if base.At(first) == "" && base.At(second) == "" {
		return Result{}, fmt.Errorf("%w: cells %s and %s are both empty", domain.ErrMalformedInput, req.First, req.Second)
	}

	candidate := base.Swap(first, second)

	var reasons []Rejection
	if first.Slot != second.Slot {
		for _, moved := range []domain.Cell{first, second} {
			reasons = append(reasons, checkArrival(v, candidate, moved)...)
		}
	}
	if len(reasons) > 0 {
		return Result{Reasons: reasons}, nil
	}

	if err := checkCardinality(v, base, candidate); err != nil {
		return Result{}, err
	}

	d, err := diff.ComputeCells(base, candidate, first, second)
	if err != nil {
		return Result{}, err
	}
	return Result{Accepted: true, Schedule: candidate, Diff: d}, nil
}

// checkArrival reports clashes for the session that landed at c.
func checkArrival(v *scheduler.Validator, candidate domain.Schedule, c domain.Cell) []Rejection {
	id := candidate.At(c)
	if id == "" {
		return nil
	}
	slot := v.Grid().Slot(c.Slot)
	catalog := v.Catalog()

	var reasons []Rejection
	for _, clash := range v.SpeakerClashesAt(candidate, c) {
		reasons = append(reasons, Rejection{
			Rule:        scheduler.RuleSpeakerConflict,
			SessionID:   id,
			SpeakerID:   clash.SpeakerID,
			ClashesWith: clash.SessionID,
			Slot:        slot.Ordinal,
			Message:     fmt.Sprintf("%s already presents %s in %s", catalog.SpeakerName(clash.SpeakerID), clash.SessionID, slot.Label()),
		})
	}
	if v.Policy().EnforceTrackCollision {
		for _, clash := range v.TrackClashesAt(candidate, c) {
			name := clash.TrackID
			if track, ok := catalog.Track(clash.TrackID); ok && track.Name != "" {
				name = track.Name
			}
			reasons = append(reasons, Rejection{
				Rule:        scheduler.RuleTrackCollision,
				SessionID:   id,
				TrackID:     clash.TrackID,
				ClashesWith: clash.SessionID,
				Slot:        slot.Ordinal,
				Message:     fmt.Sprintf("%s already runs %s in %s", name, clash.SessionID, slot.Label()),
			})
		}
	}
	return reasons
}

// checkCardinality asserts the candidate holds exactly the base's sessions
// and empty cells, and that coverage and fill are unchanged.
func checkCardinality(v *scheduler.Validator, base, candidate domain.Schedule) error {
	before, after := base.Placements(), candidate.Placements()
	if len(before) != len(after) {
		return &domain.InvariantError{
			Check:  "swap cardinality",
			Detail: fmt.Sprintf("%d distinct sessions became %d", len(before), len(after)),
		}
	}
	for id, cells := range before {
		if len(after[id]) != len(cells) {
			return &domain.InvariantError{
				Check:  "swap cardinality",
				Detail: fmt.Sprintf("session %s placed %d times, was %d", id, len(after[id]), len(cells)),
			}
		}
	}
	if got, want := len(candidate.EmptyCells()), len(base.EmptyCells()); got != want {
		return &domain.InvariantError{
			Check:  "swap fill",
			Detail: fmt.Sprintf("%d empty cells became %d", want, got),
		}
	}
	if got, want := len(v.CoverageAndFill(candidate)), len(v.CoverageAndFill(base)); got != want {
		return &domain.InvariantError{
			Check:  "swap coverage",
			Detail: fmt.Sprintf("%d coverage/fill violations became %d", want, got),
		}
	}
	return nil
}
