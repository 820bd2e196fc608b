package scheduler

// Weights combine soft-constraint scores into a total. Weights are relative;
// the zero value of all three falls back to equal weighting.
type Weights struct {
	RoomFit        float64 `json:"room_fit" yaml:"room_fit"`
	TrackDiversity float64 `json:"track_diversity" yaml:"track_diversity"`
	TopicVariety   float64 `json:"topic_variety" yaml:"topic_variety"`
}

// Policy holds the operator-tunable knobs of the validator.
type Policy struct {
	Weights Weights `json:"weights"`
	// EnforceTrackCollision escalates two same-track sessions in one slot
	// from a soft penalty to a hard violation.
	EnforceTrackCollision bool `json:"enforce_track_collision"`
	// TopicWindow is how many following slots are compared when penalising
	// repeated tracks. Values below 1 are treated as 1.
	TopicWindow int `json:"topic_window"`
}

// DefaultPolicy returns equal weights, soft track collisions and a one-slot
// topic window.
func DefaultPolicy() Policy {
	return Policy{
		Weights:     Weights{RoomFit: 1, TrackDiversity: 1, TopicVariety: 1},
		TopicWindow: 1,
	}
}

func (p Policy) normalized() Policy {
	if p.TopicWindow < 1 {
		p.TopicWindow = 1
	}
	w := &p.Weights
	for _, value := range []*float64{&w.RoomFit, &w.TrackDiversity, &w.TopicVariety} {
		if *value < 0 {
			*value = 0
		}
	}
	if w.RoomFit+w.TrackDiversity+w.TopicVariety == 0 {
		p.Weights = DefaultPolicy().Weights
	}
	return p
}
