package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/icebreaker-scheduler/internal/logging"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/persistence"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                          nil,
		"unauthorized":              ErrUnauthorized,
		"forbidden":                 mapLifecycleError(meeting.ErrNotResponder),
		"not_found":                 ErrNotFound,
		"duplicate_pending_meeting": mapMeetingRepoError(persistence.ErrDuplicate),
		"cancellation_window":       mapLifecycleError(meeting.ErrCancellationWindow),
		"conflict":                  mapMeetingRepoError(persistence.ErrConflict),
		"calendar_not_connected":    ErrCalendarNotConnected,
		"validation":                fieldError("field", "bad"),
		"unexpected":                errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fromCtx := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := logging.ContextWithLogger(context.Background(), fromCtx)

	serviceLogger(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), "MeetingService", "Confirm", "meeting_id", "m1").Info("hello")
	out := buf.String()
	for _, want := range []string{"service=MeetingService", "operation=Confirm", "meeting_id=m1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
