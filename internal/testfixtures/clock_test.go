package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Peek())
	}
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatal("a clock without step must not move on its own")
	}
}

func TestTickingClockAdvancesPerReading(t *testing.T) {
	start := time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)
	clock := NewTickingClock(start, time.Second)

	first, second := clock.Now(), clock.Now()
	if !first.Equal(start) || !second.Equal(start.Add(time.Second)) {
		t.Fatalf("unexpected readings %v, %v", first, second)
	}
	if got := clock.Peek(); !got.Equal(start.Add(2 * time.Second)) {
		t.Fatalf("peek = %v", got)
	}
}

func TestClockAdvance(t *testing.T) {
	start := time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}
	if got := clock.NowFunc()(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("NowFunc returned %v", got)
	}
}

func TestNilClockNowFuncFallsBack(t *testing.T) {
	var clock *Clock
	if clock.NowFunc()().IsZero() {
		t.Fatal("expected wall clock time")
	}
}
