package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/scheduler"
)

func TestCheckCardinality(t *testing.T) {
	t.Parallel()

	grid, err := domain.NewGrid(
		[]domain.Slot{{Ordinal: 1}},
		[]domain.Room{{ID: "r1", Capacity: 2}, {ID: "r2", Capacity: 1}},
	)
	require.NoError(t, err)
	catalog, err := domain.NewCatalog(
		[]domain.Speaker{{ID: "A"}},
		[]domain.Track{{ID: "X"}},
		[]domain.Session{
			{ID: "S1", SpeakerIDs: []string{"A"}, TrackID: "X"},
			{ID: "S2", SpeakerIDs: []string{"A"}, TrackID: "X"},
		},
	)
	require.NoError(t, err)
	v := scheduler.NewValidator(grid, catalog, scheduler.DefaultPolicy())

	rows := func(ids ...string) domain.Schedule {
		s, err := domain.ScheduleFromRows([][]string{ids})
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name      string
		candidate domain.Schedule
		wantErr   bool
	}{
		{"exchange", rows("S2", "S1"), false},
		{"session lost", rows("S1", ""), true},
		{"session duplicated", rows("S1", "S1"), true},
		{"session replaced", rows("S1", "S3"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCardinality(v, rows("S1", "S2"), tt.candidate)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var invariant *domain.InvariantError
			require.ErrorAs(t, err, &invariant)
			assert.ErrorIs(t, err, domain.ErrInvariantBreach)
		})
	}
}
