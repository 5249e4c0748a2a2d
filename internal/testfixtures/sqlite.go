package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/icebreaker-scheduler/internal/persistence"
	"github.com/example/icebreaker-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Storage        *sqlite.Storage
	Profiles       persistence.ProfileRepository
	Meetings       persistence.MeetingRepository
	CalendarTokens persistence.CalendarTokenRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "icebreaker.db")

	storage, err := sqlite.Open(ctx, sqlite.TestConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:        storage,
		Profiles:       storage,
		Meetings:       storage,
		CalendarTokens: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedMeetings stores the fixtures, failing the test on the first error.
func (h *SQLiteHarness) SeedMeetings(tb testing.TB, fixtures ...MeetingFixture) []persistence.Meeting {
	tb.Helper()
	stored := make([]persistence.Meeting, 0, len(fixtures))
	for _, fixture := range fixtures {
		m, err := h.Meetings.CreateMeeting(context.Background(), fixture.Persistence())
		if err != nil {
			tb.Fatalf("failed to seed meeting %s: %v", fixture.ID, err)
		}
		stored = append(stored, m)
	}
	return stored
}
