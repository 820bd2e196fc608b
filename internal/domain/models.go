package domain

// Speaker is a presenter loaded from the session source.
type Speaker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track groups sessions by topic area.
type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is one talk to be placed on the grid. A session may have several
// co-presenters. Draw is an optional popularity indicator used only for soft
// scoring; nil means no historical data is available.
type Session struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	SpeakerIDs  []string `json:"speaker_ids"`
	TrackID     string   `json:"track_id"`
	Draw        *float64 `json:"draw,omitempty"`
}

// HasSpeaker reports whether the speaker presents the session.
func (s Session) HasSpeaker(id string) bool {
	for _, speaker := range s.SpeakerIDs {
		if speaker == id {
			return true
		}
	}
	return false
}

func (s Session) clone() Session {
	out := s
	out.SpeakerIDs = append([]string(nil), s.SpeakerIDs...)
	if s.Draw != nil {
		draw := *s.Draw
		out.Draw = &draw
	}
	return out
}

// Room is a physical location with a seating capacity. Rank orders rooms by
// capacity, 1 being the largest, ties broken by ID ascending.
type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Rank     int    `json:"rank"`
	// Live and Simulcast name the overflow theaters, informational only.
	Live      string `json:"live,omitempty"`
	Simulcast string `json:"simulcast,omitempty"`
}

// Slot is an ordered time period. Ordinals start at 1.
type Slot struct {
	Ordinal int    `json:"ordinal"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Label returns the human label used in messages, e.g. "Slot 3".
func (s Slot) Label() string {
	return slotLabel(s.Ordinal)
}
