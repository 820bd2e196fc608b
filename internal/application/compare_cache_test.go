package application

import (
	"testing"
	"time"

	"github.com/example/conference-scheduler/internal/diff"
	"github.com/example/conference-scheduler/internal/domain"
)

func sampleDiff() diff.Diff {
	return diff.Diff{Slots: 1, Rooms: 1, Cells: []diff.CellDiff{
		{Cell: domain.Cell{}, Kind: diff.Added, After: "S1"},
	}}
}

func TestCompareCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	cache := newCompareCache(time.Minute, 4, func() time.Time { return current })

	original := sampleDiff()
	cache.Store(compareKey(1, 2), original)
	original.Cells[0].After = "mutated"

	cached, ok := cache.Get(compareKey(1, 2))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached.Cells[0].After != "S1" {
		t.Fatalf("expected cached diff to remain unchanged, got %s", cached.Cells[0].After)
	}

	cached.Cells[0].After = "changed"
	again, _ := cache.Get(compareKey(1, 2))
	if again.Cells[0].After != "S1" {
		t.Fatalf("expected independent copy, got %s", again.Cells[0].After)
	}

	if _, ok := cache.Get(compareKey(2, 1)); ok {
		t.Fatalf("direction must be part of the key")
	}
}

func TestCompareCacheExpiresEntries(t *testing.T) {
	current := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	cache := newCompareCache(time.Second, 4, func() time.Time { return current })

	cache.Store("key", sampleDiff())
	if _, ok := cache.Get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestCompareCacheBoundsEntries(t *testing.T) {
	cache := newCompareCache(time.Minute, 2, time.Now)
	for i := 0; i < 5; i++ {
		cache.Store(compareKey(i, i+1), sampleDiff())
	}
	if got := cache.Len(); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}
