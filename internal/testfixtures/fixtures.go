package testfixtures

import (
	"fmt"
	"testing"
	"time"

	"github.com/example/conference-scheduler/internal/domain"
)

var referenceTime = time.Date(2026, time.May, 1, 7, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ------------------------------ Toy grid ------------------------------

// ToyGrid returns a two-slot, two-room grid. room-a seats 300, room-b 100.
func ToyGrid(tb testing.TB) *domain.Grid {
	tb.Helper()
	grid, err := domain.NewGrid(
		[]domain.Slot{
			{Ordinal: 1, Start: "08:30", End: "09:15"},
			{Ordinal: 2, Start: "09:30", End: "10:15"},
		},
		[]domain.Room{
			{ID: "room-a", Name: "Room A", Capacity: 300},
			{ID: "room-b", Name: "Room B", Capacity: 100},
		},
	)
	if err != nil {
		tb.Fatalf("failed to build toy grid: %v", err)
	}
	return grid
}

// ToyCatalog returns four sessions: S1 (speaker A, track X), S2 (A, Y),
// S3 (B, X) and S4 (B, Y).
func ToyCatalog(tb testing.TB) *domain.Catalog {
	tb.Helper()
	catalog, err := domain.NewCatalog(
		[]domain.Speaker{{ID: "A", Name: "Speaker A"}, {ID: "B", Name: "Speaker B"}},
		[]domain.Track{{ID: "X", Name: "Track X"}, {ID: "Y", Name: "Track Y"}},
		[]domain.Session{
			{ID: "S1", Title: "Session 1", SpeakerIDs: []string{"A"}, TrackID: "X"},
			{ID: "S2", Title: "Session 2", SpeakerIDs: []string{"A"}, TrackID: "Y"},
			{ID: "S3", Title: "Session 3", SpeakerIDs: []string{"B"}, TrackID: "X"},
			{ID: "S4", Title: "Session 4", SpeakerIDs: []string{"B"}, TrackID: "Y"},
		},
	)
	if err != nil {
		tb.Fatalf("failed to build toy catalog: %v", err)
	}
	return catalog
}

// ToyConflicting places both of speaker A's sessions in slot 1. S4 is left
// out so speaker B presents only once; the schedule is therefore partial.
func ToyConflicting(tb testing.TB) domain.Schedule {
	return Schedule(tb, []string{"S1", "S2"}, []string{"S3", ""})
}

// ToyValid splits A's sessions across slots 1 and 2.
func ToyValid(tb testing.TB) domain.Schedule {
	return Schedule(tb, []string{"S1", "S4"}, []string{"S2", "S3"})
}

// Schedule builds a schedule from slot rows, failing the test on error.
func Schedule(tb testing.TB, rows ...[]string) domain.Schedule {
	tb.Helper()
	schedule, err := domain.ScheduleFromRows(rows)
	if err != nil {
		tb.Fatalf("failed to build schedule: %v", err)
	}
	return schedule
}

// Cell resolves "<slot>:<room>" against the grid, failing the test on error.
func Cell(tb testing.TB, grid *domain.Grid, ref string) domain.Cell {
	tb.Helper()
	parsed, err := domain.ParseCellRef(ref)
	if err != nil {
		tb.Fatalf("bad cell reference %q: %v", ref, err)
	}
	cell, err := grid.Resolve(parsed)
	if err != nil {
		tb.Fatalf("unresolvable cell %q: %v", ref, err)
	}
	return cell
}

// --------------------------- Conference grid ---------------------------

// Conference bundles a generated grid, catalog and a valid complete schedule.
type Conference struct {
	Grid     *domain.Grid
	Catalog  *domain.Catalog
	Schedule domain.Schedule
}

type conferenceConfig struct {
	slots    int
	rooms    int
	tracks   int
	withDraw bool
}

// ConferenceOption configures NewConference.
type ConferenceOption func(*conferenceConfig)

// WithShape overrides the default 7 × 8 grid.
func WithShape(slots, rooms int) ConferenceOption {
	return func(c *conferenceConfig) {
		c.slots = slots
		c.rooms = rooms
	}
}

// WithTracks overrides the number of tracks.
func WithTracks(n int) ConferenceOption {
	return func(c *conferenceConfig) {
		c.tracks = n
	}
}

// WithoutDraw leaves every session without a draw indicator.
func WithoutDraw() ConferenceOption {
	return func(c *conferenceConfig) {
		c.withDraw = false
	}
}

// NewConference generates one session per cell. Session ids are
// "sess-<slot>-<room>". Every even room's speaker in slot n also presents the
// same room in slot n+1, giving multi-session speakers in distinct slots.
// Draw matches the capacity of the assigned room so room fit is perfect.
func NewConference(tb testing.TB, opts ...ConferenceOption) Conference {
	tb.Helper()
	cfg := conferenceConfig{slots: 7, rooms: 8, tracks: 8, withDraw: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	slots := make([]domain.Slot, cfg.slots)
	for i := range slots {
		start := referenceTime.Add(time.Duration(i+1) * time.Hour)
		slots[i] = domain.Slot{
			Ordinal: i + 1,
			Start:   start.Format("15:04"),
			End:     start.Add(45 * time.Minute).Format("15:04"),
		}
	}
	rooms := make([]domain.Room, cfg.rooms)
	for i := range rooms {
		rooms[i] = domain.Room{
			ID:       fmt.Sprintf("room-%d", i+1),
			Name:     fmt.Sprintf("Room %d", i+1),
			Capacity: 400 - i*25,
		}
	}
	grid, err := domain.NewGrid(slots, rooms)
	if err != nil {
		tb.Fatalf("failed to build conference grid: %v", err)
	}

	tracks := make([]domain.Track, cfg.tracks)
	for i := range tracks {
		tracks[i] = domain.Track{ID: fmt.Sprintf("track-%d", i+1), Name: fmt.Sprintf("Track %d", i+1)}
	}

	var (
		speakers []domain.Speaker
		sessions []domain.Session
	)
	rows := make([][]string, cfg.slots)
	for slot := 0; slot < cfg.slots; slot++ {
		rows[slot] = make([]string, cfg.rooms)
		for room := 0; room < cfg.rooms; room++ {
			id := fmt.Sprintf("sess-%d-%d", slot+1, room+1)
			speakerID := fmt.Sprintf("spk-%d-%d", slot+1, room+1)
			if room%2 == 0 && slot%2 == 1 {
				speakerID = fmt.Sprintf("spk-%d-%d", slot, room+1)
			} else {
				speakers = append(speakers, domain.Speaker{ID: speakerID, Name: "Speaker " + speakerID})
			}
			session := domain.Session{
				ID:         id,
				Title:      "Talk " + id,
				SpeakerIDs: []string{speakerID},
				TrackID:    tracks[(slot+room)%cfg.tracks].ID,
			}
			if cfg.withDraw {
				draw := float64(rooms[room].Capacity)
				session.Draw = &draw
			}
			sessions = append(sessions, session)
			rows[slot][room] = id
		}
	}

	catalog, err := domain.NewCatalog(speakers, tracks, sessions)
	if err != nil {
		tb.Fatalf("failed to build conference catalog: %v", err)
	}

	return Conference{Grid: grid, Catalog: catalog, Schedule: Schedule(tb, rows...)}
}
