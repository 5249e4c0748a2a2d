// Package sweeper periodically completes confirmed meetings whose time has passed.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often elapsed meetings are completed.
const DefaultInterval = 5 * time.Minute

// Completer completes elapsed meetings and reports how many changed.
type Completer interface {
	CompleteElapsed(ctx context.Context) (int, error)
}

// Sweeper runs a Completer on a fixed interval.
type Sweeper struct {
	completer Completer
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Sweeper. A non-positive interval uses DefaultInterval.
func New(completer Completer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		completer: completer,
		interval:  interval,
		logger:    logger.With("component", "sweeper"),
	}
}

// Start runs one sweep immediately and then one per interval until ctx is
// done or Stop is called. It blocks; run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	defer close(doneCh)

	s.logger.Info("completion sweeper started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("completion sweeper stopped by context")
			s.markStopped()
			return
		case <-stopCh:
			s.logger.Info("completion sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop ends a running Start loop and waits for it to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
}

// RunOnce performs a single sweep and returns the number of completed meetings.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	started := time.Now()
	count, err := s.completer.CompleteElapsed(ctx)
	if err != nil {
		s.logger.Error("completion sweep failed", "error", err, "completed", count)
		return count
	}
	if count > 0 {
		s.logger.Info("completed elapsed meetings", "completed", count, "duration", time.Since(started).String())
	} else {
		s.logger.Debug("no elapsed meetings")
	}
	return count
}

func (s *Sweeper) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
