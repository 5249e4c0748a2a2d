package application

import (
	"context"
	"sync"
	"time"

	"github.com/example/icebreaker-scheduler/internal/ranking"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

// SuggestionCache keeps recently ranked slot lists in memory so repeated
// suggestion requests with unchanged inputs skip the ranking gateway. It is
// used when no Redis instance is configured.
type SuggestionCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]suggestionCacheEntry
}

var _ ranking.Cache = (*SuggestionCache)(nil)

type suggestionCacheEntry struct {
	slots     []slots.TimeSlot
	expiresAt time.Time
}

// NewSuggestionCache creates a cache holding at most maxEntries lists for ttl each.
func NewSuggestionCache(ttl time.Duration, maxEntries int, now func() time.Time) *SuggestionCache {
	if ttl <= 0 {
		ttl = ranking.DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if now == nil {
		now = time.Now
	}
	return &SuggestionCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]suggestionCacheEntry),
	}
}

// Get returns a copy of the cached list for key.
func (c *SuggestionCache) Get(_ context.Context, key string) ([]slots.TimeSlot, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneSlots(entry.slots), true, nil
}

// Set stores a copy of value under key.
func (c *SuggestionCache) Set(_ context.Context, key string, value []slots.TimeSlot) error {
	if c == nil {
		return nil
	}
	cloned := cloneSlots(value)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = suggestionCacheEntry{slots: cloned, expiresAt: expiry}
	return nil
}

// Invalidate drops every entry.
func (c *SuggestionCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]suggestionCacheEntry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *SuggestionCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SuggestionCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked drops the entry closest to expiry.
func (c *SuggestionCache) evictOneLocked() {
	var (
		victim string
		oldest time.Time
	)
	for key, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(oldest) {
			victim, oldest = key, entry.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

func cloneSlots(values []slots.TimeSlot) []slots.TimeSlot {
	if values == nil {
		return nil
	}
	out := make([]slots.TimeSlot, len(values))
	copy(out, values)
	return out
}
