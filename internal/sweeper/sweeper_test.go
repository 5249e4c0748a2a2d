package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type completerStub struct {
	calls atomic.Int32
	count int
	err   error
}

func (c *completerStub) CompleteElapsed(context.Context) (int, error) {
	c.calls.Add(1)
	return c.count, c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	stub := &completerStub{count: 3}
	s := New(stub, time.Minute, discardLogger())
	if got := s.RunOnce(context.Background()); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}

	failing := &completerStub{err: errors.New("boom")}
	s = New(failing, time.Minute, discardLogger())
	if got := s.RunOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0 on error, got %d", got)
	}
}

func TestStartSweepsUntilStopped(t *testing.T) {
	t.Parallel()

	stub := &completerStub{}
	s := New(stub, 10*time.Millisecond, discardLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for stub.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated sweeps, got %d", stub.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	s.Stop()
}

func TestStartStopsWithContext(t *testing.T) {
	t.Parallel()

	stub := &completerStub{}
	s := New(stub, time.Hour, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if stub.calls.Load() < 1 {
		t.Fatal("expected the initial sweep")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	t.Parallel()
	if s := New(&completerStub{}, 0, nil); s.interval != DefaultInterval {
		t.Fatalf("expected default interval, got %s", s.interval)
	}
}
