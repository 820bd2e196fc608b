// Package persistencetest holds the behavior every VersionRepository must
// share, run against each implementation from its own tests.
package persistencetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/persistence"
)

// Factory returns an empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.VersionRepository

// Record builds a minimal storable record.
func Record(n int) persistence.VersionRecord {
	return persistence.VersionRecord{
		ID:          fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		Label:       fmt.Sprintf("Version %d", n),
		Description: "fixture",
		CreatedAt:   time.Date(2026, time.May, 4, 9, n, 0, 0, time.UTC),
		Schedule:    []byte(fmt.Sprintf(`{"rows":[["S%d"]]}`, n)),
		Report:      []byte(`{"valid":true}`),
		Checksum:    fmt.Sprintf("sum-%d", n),
		SoftTotal:   0.5,
	}
}

// RunVersionRepositoryContract exercises newRepo against the shared contract.
func RunVersionRepositoryContract(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("empty repository", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.LatestVersion(ctx)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		_, err = repo.GetVersion(ctx, 1)
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		list, err := repo.ListVersions(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		count, err := repo.CountVersions(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("append assigns consecutive ordinals", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for n := 1; n <= 3; n++ {
			rec := Record(n)
			rec.Ordinal = 99
			stored, err := repo.AppendVersion(ctx, rec)
			require.NoError(t, err)
			assert.Equal(t, n, stored.Ordinal)
		}

		latest, err := repo.LatestVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, latest.Ordinal)
		assert.Equal(t, "Version 3", latest.Label)

		list, err := repo.ListVersions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, summary := range list {
			assert.Equal(t, i+1, summary.Ordinal)
		}
	})

	t.Run("records round trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		want := Record(7)
		_, err := repo.AppendVersion(ctx, want)
		require.NoError(t, err)

		got, err := repo.GetVersion(ctx, 1)
		require.NoError(t, err)
		want.Ordinal = 1
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Label, got.Label)
		assert.Equal(t, want.Description, got.Description)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, want.CreatedAt)
		assert.Equal(t, want.Schedule, got.Schedule)
		assert.Equal(t, want.Report, got.Report)
		assert.Equal(t, want.Checksum, got.Checksum)
		assert.InDelta(t, want.SoftTotal, got.SoftTotal, 1e-12)

		byLabel, err := repo.GetVersionByLabel(ctx, want.Label)
		require.NoError(t, err)
		assert.Equal(t, got.ID, byLabel.ID)

		_, err = repo.GetVersionByLabel(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("stored payloads are not aliased", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := Record(1)
		_, err := repo.AppendVersion(ctx, rec)
		require.NoError(t, err)
		rec.Schedule[0] = 'X'

		got, err := repo.GetVersion(ctx, 1)
		require.NoError(t, err)
		got.Schedule[1] = 'X'

		again, err := repo.GetVersion(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, Record(1).Schedule, again.Schedule)
	})

	t.Run("duplicates are rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.AppendVersion(ctx, Record(1))
		require.NoError(t, err)

		sameID := Record(2)
		sameID.ID = Record(1).ID
		_, err = repo.AppendVersion(ctx, sameID)
		assert.ErrorIs(t, err, persistence.ErrAlreadyExists)

		sameLabel := Record(3)
		sameLabel.Label = Record(1).Label
		_, err = repo.AppendVersion(ctx, sameLabel)
		assert.ErrorIs(t, err, persistence.ErrAlreadyExists)

		count, err := repo.CountVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		next, err := repo.AppendVersion(ctx, Record(4))
		require.NoError(t, err)
		assert.Equal(t, 2, next.Ordinal, "rejected appends must not consume ordinals")
	})

	t.Run("incomplete records are rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		noLabel := Record(1)
		noLabel.Label = ""
		_, err := repo.AppendVersion(ctx, noLabel)
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

		noSchedule := Record(1)
		noSchedule.Schedule = nil
		_, err = repo.AppendVersion(ctx, noSchedule)
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("concurrent appends get distinct ordinals", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const writers = 8
		ordinals := make(chan int, writers)
		var wg sync.WaitGroup
		for n := 1; n <= writers; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				stored, err := repo.AppendVersion(ctx, Record(n))
				if assert.NoError(t, err) {
					ordinals <- stored.Ordinal
				}
			}(n)
		}
		wg.Wait()
		close(ordinals)

		seen := make(map[int]bool)
		for ordinal := range ordinals {
			assert.False(t, seen[ordinal], "ordinal %d assigned twice", ordinal)
			seen[ordinal] = true
		}
		for ordinal := 1; ordinal <= writers; ordinal++ {
			assert.True(t, seen[ordinal], "ordinal %d missing", ordinal)
		}
	})
}
