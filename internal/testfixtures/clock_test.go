package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Monday {
		t.Fatalf("reference time should be a Monday, got %s", clock.Now().Weekday())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(48 * time.Hour)
	if !updated.Equal(start.Add(48 * time.Hour)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(96 * time.Hour))
	if got := clock.Current(); !got.Equal(start.Add(96 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(96*time.Hour), got)
	}
}

func TestClockAdvanceTo(t *testing.T) {
	clock := NewClock(time.Time{})

	got := clock.AdvanceTo(time.Wednesday, 12, 30)
	want := time.Date(2026, time.October, 21, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = clock.AdvanceTo(time.Wednesday, 8, 0)
	if want := time.Date(2026, time.October, 28, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("same weekday should move a full week, expected %v, got %v", want, got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Time{})
	nowFn := clock.NowFunc()

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Current()) {
		t.Fatalf("expected updated time %v, got %v", clock.Current(), got)
	}

	var missing *Clock
	if missing.NowFunc() == nil {
		t.Fatalf("nil clock should fall back to time.Now")
	}
}
