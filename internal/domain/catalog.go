package domain

import (
	"sort"
	"strings"
)

// Catalog is the immutable set of sessions, speakers and tracks with lookup
// indices built once at construction.
type Catalog struct {
	sessions map[string]Session
	speakers map[string]Speaker
	tracks   map[string]Track

	sessionIDs        []string
	sessionsBySpeaker map[string][]string
	sessionsByTrack   map[string][]string
}

// NewCatalog validates cross references and builds the indices. Every session
// must name at least one known speaker and a known track.
func NewCatalog(speakers []Speaker, tracks []Track, sessions []Session) (*Catalog, error) {
	c := &Catalog{
		sessions:          make(map[string]Session, len(sessions)),
		speakers:          make(map[string]Speaker, len(speakers)),
		tracks:            make(map[string]Track, len(tracks)),
		sessionsBySpeaker: make(map[string][]string),
		sessionsByTrack:   make(map[string][]string),
	}

	for _, speaker := range speakers {
		if strings.TrimSpace(speaker.ID) == "" {
			return nil, malformed("speaker %q has no id", speaker.Name)
		}
		if _, dup := c.speakers[speaker.ID]; dup {
			return nil, malformed("duplicate speaker id %q", speaker.ID)
		}
		c.speakers[speaker.ID] = speaker
	}
	for _, track := range tracks {
		if strings.TrimSpace(track.ID) == "" {
			return nil, malformed("track %q has no id", track.Name)
		}
		if _, dup := c.tracks[track.ID]; dup {
			return nil, malformed("duplicate track id %q", track.ID)
		}
		c.tracks[track.ID] = track
	}

	for _, session := range sessions {
		if strings.TrimSpace(session.ID) == "" {
			return nil, malformed("session %q has no id", session.Title)
		}
		if _, dup := c.sessions[session.ID]; dup {
			return nil, malformed("duplicate session id %q", session.ID)
		}
		if len(session.SpeakerIDs) == 0 {
			return nil, malformed("session %q has no speakers", session.ID)
		}
		for _, speakerID := range session.SpeakerIDs {
			if _, ok := c.speakers[speakerID]; !ok {
				return nil, &ReferenceError{Kind: ReferenceSpeaker, ID: speakerID, Where: "session " + session.ID}
			}
		}
		if _, ok := c.tracks[session.TrackID]; !ok {
			return nil, &ReferenceError{Kind: ReferenceTrack, ID: session.TrackID, Where: "session " + session.ID}
		}

		stored := session.clone()
		stored.SpeakerIDs = uniqueSorted(stored.SpeakerIDs)
		c.sessions[session.ID] = stored
		c.sessionIDs = append(c.sessionIDs, session.ID)
		for _, speakerID := range stored.SpeakerIDs {
			c.sessionsBySpeaker[speakerID] = append(c.sessionsBySpeaker[speakerID], session.ID)
		}
		c.sessionsByTrack[session.TrackID] = append(c.sessionsByTrack[session.TrackID], session.ID)
	}

	sort.Strings(c.sessionIDs)
	for id := range c.sessionsBySpeaker {
		sort.Strings(c.sessionsBySpeaker[id])
	}
	for id := range c.sessionsByTrack {
		sort.Strings(c.sessionsByTrack[id])
	}

	return c, nil
}

// SessionCount returns the number of loaded sessions.
func (c *Catalog) SessionCount() int { return len(c.sessionIDs) }

// SessionIDs returns every session id in ascending order.
func (c *Catalog) SessionIDs() []string { return append([]string(nil), c.sessionIDs...) }

// Session looks up a session by id.
func (c *Catalog) Session(id string) (Session, bool) {
	session, ok := c.sessions[id]
	if !ok {
		return Session{}, false
	}
	return session.clone(), true
}

// Speaker looks up a speaker by id.
func (c *Catalog) Speaker(id string) (Speaker, bool) {
	speaker, ok := c.speakers[id]
	return speaker, ok
}

// Track looks up a track by id.
func (c *Catalog) Track(id string) (Track, bool) {
	track, ok := c.tracks[id]
	return track, ok
}

// SpeakersOf returns the speaker ids owning a session.
func (c *Catalog) SpeakersOf(sessionID string) []string {
	return append([]string(nil), c.sessions[sessionID].SpeakerIDs...)
}

// TrackOf returns the track id of a session, or "" for unknown sessions.
func (c *Catalog) TrackOf(sessionID string) string {
	return c.sessions[sessionID].TrackID
}

// DrawOf returns the draw indicator of a session when known.
func (c *Catalog) DrawOf(sessionID string) (float64, bool) {
	session, ok := c.sessions[sessionID]
	if !ok || session.Draw == nil {
		return 0, false
	}
	return *session.Draw, true
}

// SessionsBySpeaker returns the session ids a speaker presents.
func (c *Catalog) SessionsBySpeaker(speakerID string) []string {
	return append([]string(nil), c.sessionsBySpeaker[speakerID]...)
}

// SessionsByTrack returns the session ids of a track.
func (c *Catalog) SessionsByTrack(trackID string) []string {
	return append([]string(nil), c.sessionsByTrack[trackID]...)
}

// SpeakerName returns the display name, falling back to the id.
func (c *Catalog) SpeakerName(id string) string {
	if speaker, ok := c.speakers[id]; ok && speaker.Name != "" {
		return speaker.Name
	}
	return id
}

// MultiSessionSpeakers maps every speaker presenting more than one session to
// those session ids. These speakers must be spread across distinct slots.
func (c *Catalog) MultiSessionSpeakers() map[string][]string {
	out := make(map[string][]string)
	for speakerID, ids := range c.sessionsBySpeaker {
		if len(ids) > 1 {
			out[speakerID] = append([]string(nil), ids...)
		}
	}
	return out
}

// CheckReferences fails fast with a ReferenceError naming the first unknown
// session id in slot-major order.
func (c *Catalog) CheckReferences(g *Grid, s Schedule) error {
	var err error
	s.Each(func(cell Cell, id string) {
		if err != nil || id == "" {
			return
		}
		if _, ok := c.sessions[id]; !ok {
			err = &ReferenceError{Kind: ReferenceSession, ID: id, Where: g.Describe(cell)}
		}
	})
	return err
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
