package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/icebreaker-scheduler/internal/persistence"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code string
		want error
	}{
		{code: "23505", want: persistence.ErrDuplicate},
		{code: "23514", want: persistence.ErrConstraintViolation},
		{code: "23502", want: persistence.ErrConstraintViolation},
	}
	for _, tc := range cases {
		err := MapError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code}))
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}

	plain := errors.New("connection reset")
	if MapError(plain) != plain || MapError(nil) != nil {
		t.Fatalf("non-postgres errors must pass through")
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	if !Retryable(&pgconn.PgError{Code: "40001"}) || !Retryable(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("serialization failures and deadlocks are transient")
	}
	if Retryable(&pgconn.PgError{Code: "23505"}) || Retryable(errors.New("boom")) {
		t.Fatalf("unexpected retryable classification")
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}, nil); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

// TestStorageAgainstDatabase runs only when a disposable database is provided.
func TestStorageAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("ICEBREAKER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ICEBREAKER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	storage, err := Open(ctx, Config{DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer storage.Close()
	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	alice, bob := "alice-"+suffix, "bob-"+suffix
	now := time.Now().UTC().Truncate(time.Microsecond)
	meeting := persistence.Meeting{
		ID:          "m-" + suffix,
		RequesterID: alice,
		RecipientID: bob,
		ProposedBy:  alice,
		ScheduledAt: now.Add(72 * time.Hour),
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
		ProposedAt:  now,
	}
	if _, err := storage.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("create: %v", err)
	}

	reverse := meeting
	reverse.ID = "m2-" + suffix
	reverse.RequesterID, reverse.RecipientID, reverse.ProposedBy = bob, alice, bob
	if _, err := storage.CreateMeeting(ctx, reverse); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	fetched, err := storage.GetMeeting(ctx, meeting.ID)
	if err != nil || !fetched.ScheduledAt.Equal(meeting.ScheduledAt) {
		t.Fatalf("get: %+v %v", fetched, err)
	}
}
