package scheduler

import "github.com/example/conference-scheduler/internal/domain"

// Rule identifies a hard or soft constraint.
type Rule string

const (
	// RuleCoverage requires every catalog session to appear exactly once.
	RuleCoverage Rule = "coverage"
	// RuleFill requires every cell to be occupied.
	RuleFill Rule = "fill"
	// RuleSpeakerConflict forbids a speaker presenting twice in one slot.
	RuleSpeakerConflict Rule = "speaker_conflict"
	// RuleRoomExclusivity forbids one session occupying several rooms of a slot.
	RuleRoomExclusivity Rule = "room_exclusivity"
	// RuleTrackCollision flags two sessions of a track in one slot. Hard only
	// when Policy.EnforceTrackCollision is set.
	RuleTrackCollision Rule = "track_collision"

	RuleRoomFit        Rule = "room_size_fit"
	RuleTrackDiversity Rule = "track_diversity"
	RuleTopicVariety   Rule = "topic_variety"
)

// Violation is one broken hard constraint with the cells and sessions involved.
type Violation struct {
	Rule       Rule             `json:"rule"`
	Message    string           `json:"message"`
	Cells      []domain.CellRef `json:"cells,omitempty"`
	SessionIDs []string         `json:"session_ids,omitempty"`
	SpeakerID  string           `json:"speaker_id,omitempty"`
	TrackID    string           `json:"track_id,omitempty"`
	Slots      []int            `json:"slots,omitempty"`
}

// SoftScore is one soft-constraint result in [0,1], higher is better.
type SoftScore struct {
	Rule    Rule      `json:"rule"`
	Score   float64   `json:"score"`
	Weight  float64   `json:"weight"`
	PerSlot []float64 `json:"per_slot,omitempty"`
}

// Report is the outcome of validating one schedule.
type Report struct {
	Violations []Violation `json:"violations"`
	Soft       []SoftScore `json:"soft"`
	Total      float64     `json:"total"`
	// TrackDoublings sums, over slots, the extra sessions of any track that
	// appears more than once in the slot.
	TrackDoublings int `json:"track_doublings"`
	// TrackCounts holds one track → session count histogram per slot.
	TrackCounts []map[string]int `json:"track_counts"`
}

// Valid reports whether no hard constraint was violated.
func (r Report) Valid() bool {
	return len(r.Violations) == 0
}

// ViolationsOf filters violations by rule.
func (r Report) ViolationsOf(rule Rule) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Rule == rule {
			out = append(out, v)
		}
	}
	return out
}

// Score returns the soft score for a rule.
func (r Report) Score(rule Rule) (SoftScore, bool) {
	for _, score := range r.Soft {
		if score.Rule == rule {
			return score, true
		}
	}
	return SoftScore{}, false
}
