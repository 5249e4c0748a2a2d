package application

import (
	"context"
	"testing"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

func cacheSlot(t *testing.T, date string, hour int) slots.TimeSlot {
	t.Helper()
	d, err := availability.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return slots.TimeSlot{Day: d.Weekday(), Date: d, Start: availability.MustTimeOfDay(hour, 0), End: availability.MustTimeOfDay(hour+1, 0)}
}

func TestSuggestionCacheStoresAndReturnsCopies(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	cache := NewSuggestionCache(time.Minute, 4, func() time.Time { return current })

	original := []slots.TimeSlot{cacheSlot(t, "2026-10-20", 10)}
	original[0].Rationale = "both free"
	if err := cache.Set(ctx, "key", original); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Mutating the original slice should not affect the cached copy.
	original[0].Rationale = "mutated"

	cached, ok, err := cache.Get(ctx, "key")
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if cached[0].Rationale != "both free" {
		t.Fatalf("expected cached rationale to remain unchanged, got %s", cached[0].Rationale)
	}

	cached[0].Rationale = "changed"
	again, _, _ := cache.Get(ctx, "key")
	if again[0].Rationale != "both free" {
		t.Fatalf("expected cache to return independent copy, got %s", again[0].Rationale)
	}
}

func TestSuggestionCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	cache := NewSuggestionCache(time.Second, 4, func() time.Time { return current })

	_ = cache.Set(ctx, "key", []slots.TimeSlot{cacheSlot(t, "2026-10-20", 10)})
	if _, ok, _ := cache.Get(ctx, "key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok, _ := cache.Get(ctx, "key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestSuggestionCacheEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	cache := NewSuggestionCache(time.Hour, 2, func() time.Time { return current })

	_ = cache.Set(ctx, "first", nil)
	current = current.Add(time.Minute)
	_ = cache.Set(ctx, "second", nil)
	current = current.Add(time.Minute)
	_ = cache.Set(ctx, "third", nil)

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if _, ok, _ := cache.Get(ctx, "first"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok, _ := cache.Get(ctx, "third"); !ok {
		t.Fatalf("expected newest entry to be kept")
	}

	// Overwriting an existing key does not evict.
	_ = cache.Set(ctx, "third", nil)
	if _, ok, _ := cache.Get(ctx, "second"); !ok {
		t.Fatalf("expected second entry to survive an overwrite")
	}
}

func TestSuggestionCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewSuggestionCache(time.Minute, 4, time.Now)
	_ = cache.Set(ctx, "key", []slots.TimeSlot{cacheSlot(t, "2026-10-20", 10)})
	cache.Invalidate()
	if _, ok, _ := cache.Get(ctx, "key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}

	var nilCache *SuggestionCache
	if _, ok, err := nilCache.Get(ctx, "key"); ok || err != nil {
		t.Fatalf("nil cache must miss quietly")
	}
}
