package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/conference-scheduler/internal/domain"
)

// Clash is a session sharing a speaker or track with the session at a probed
// cell, within the same slot.
type Clash struct {
	Cell      domain.Cell
	SessionID string
	SpeakerID string
	TrackID   string
}

// SpeakerClashesAt reports, for the session placed at c, every other session
// in the same slot that shares one of its speakers. Empty cells yield nothing.
func (v *Validator) SpeakerClashesAt(s domain.Schedule, c domain.Cell) []Clash {
	probe := s.At(c)
	if probe == "" {
		return nil
	}
	speakers := v.catalog.SpeakersOf(probe)

	var clashes []Clash
	for room, other := range s.Slot(c.Slot) {
		if room == c.Room || other == "" || other == probe {
			continue
		}
		session, ok := v.catalog.Session(other)
		if !ok {
			continue
		}
		for _, speaker := range speakers {
			if session.HasSpeaker(speaker) {
				clashes = append(clashes, Clash{
					Cell:      domain.Cell{Slot: c.Slot, Room: room},
					SessionID: other,
					SpeakerID: speaker,
				})
			}
		}
	}
	return clashes
}

// TrackClashesAt reports sessions in the same slot sharing the track of the
// session placed at c.
func (v *Validator) TrackClashesAt(s domain.Schedule, c domain.Cell) []Clash {
	probe := s.At(c)
	if probe == "" {
		return nil
	}
	track := v.catalog.TrackOf(probe)

	var clashes []Clash
	for room, other := range s.Slot(c.Slot) {
		if room == c.Room || other == "" || other == probe {
			continue
		}
		if v.catalog.TrackOf(other) == track {
			clashes = append(clashes, Clash{
				Cell:      domain.Cell{Slot: c.Slot, Room: room},
				SessionID: other,
				TrackID:   track,
			})
		}
	}
	return clashes
}

// speakerConflicts emits one violation per speaker who presents two or more
// distinct sessions in any slot, naming every colliding slot.
func (v *Validator) speakerConflicts(s domain.Schedule) []Violation {
	type slotSessions map[string][]domain.Cell
	bySpeaker := make(map[string]map[int]slotSessions)

	s.Each(func(c domain.Cell, id string) {
		if id == "" {
			return
		}
		for _, speaker := range v.catalog.SpeakersOf(id) {
			slots, ok := bySpeaker[speaker]
			if !ok {
				slots = make(map[int]slotSessions)
				bySpeaker[speaker] = slots
			}
			sessions, ok := slots[c.Slot]
			if !ok {
				sessions = make(slotSessions)
				slots[c.Slot] = sessions
			}
			sessions[id] = append(sessions[id], c)
		}
	})

	speakers := make([]string, 0, len(bySpeaker))
	for speaker := range bySpeaker {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)

	var violations []Violation
	for _, speaker := range speakers {
		var (
			slots    []int
			sessions []string
			cells    []domain.Cell
			parts    []string
		)
		slotIndexes := make([]int, 0, len(bySpeaker[speaker]))
		for slot := range bySpeaker[speaker] {
			slotIndexes = append(slotIndexes, slot)
		}
		sort.Ints(slotIndexes)

		for _, slot := range slotIndexes {
			placed := bySpeaker[speaker][slot]
			if len(placed) < 2 {
				continue
			}
			ids := make([]string, 0, len(placed))
			for id := range placed {
				ids = append(ids, id)
				cells = append(cells, placed[id]...)
			}
			sort.Strings(ids)
			slots = append(slots, v.grid.Slot(slot).Ordinal)
			sessions = append(sessions, ids...)
			parts = append(parts, fmt.Sprintf("%s in %s", strings.Join(ids, ", "), v.grid.Slot(slot).Label()))
		}
		if len(slots) == 0 {
			continue
		}

		violations = append(violations, Violation{
			Rule:       RuleSpeakerConflict,
			Message:    fmt.Sprintf("speaker %s presents %s", v.catalog.SpeakerName(speaker), strings.Join(parts, "; ")),
			Cells:      v.refs(cells),
			SessionIDs: uniqueSorted(sessions),
			SpeakerID:  speaker,
			Slots:      slots,
		})
	}
	return violations
}

// trackCollisions emits one violation per (slot, track) holding two or more
// distinct sessions.
func (v *Validator) trackCollisions(s domain.Schedule) []Violation {
	var violations []Violation
	for slot := 0; slot < s.SlotCount(); slot++ {
		byTrack := make(map[string][]domain.Cell)
		seen := make(map[string]struct{})
		for room, id := range s.Slot(slot) {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			track := v.catalog.TrackOf(id)
			byTrack[track] = append(byTrack[track], domain.Cell{Slot: slot, Room: room})
		}

		tracks := make([]string, 0, len(byTrack))
		for track, cells := range byTrack {
			if len(cells) > 1 {
				tracks = append(tracks, track)
			}
		}
		sort.Strings(tracks)

		for _, track := range tracks {
			cells := byTrack[track]
			ids := make([]string, 0, len(cells))
			for _, c := range cells {
				ids = append(ids, s.At(c))
			}
			sort.Strings(ids)
			violations = append(violations, Violation{
				Rule:       RuleTrackCollision,
				Message:    fmt.Sprintf("track %s has %d sessions in %s: %s", v.trackName(track), len(cells), v.grid.Slot(slot).Label(), strings.Join(ids, ", ")),
				Cells:      v.refs(cells),
				SessionIDs: ids,
				TrackID:    track,
				Slots:      []int{v.grid.Slot(slot).Ordinal},
			})
		}
	}
	return violations
}

func (v *Validator) trackName(id string) string {
	if track, ok := v.catalog.Track(id); ok && track.Name != "" {
		return track.Name
	}
	return id
}

func (v *Validator) refs(cells []domain.Cell) []domain.CellRef {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Slot == cells[j].Slot {
			return cells[i].Room < cells[j].Room
		}
		return cells[i].Slot < cells[j].Slot
	})
	out := make([]domain.CellRef, 0, len(cells))
	for _, c := range cells {
		out = append(out, v.grid.Ref(c))
	}
	return out
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
