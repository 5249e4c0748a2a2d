package calendar

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStateTTL bounds how long an OAuth consent round trip may take.
const DefaultStateTTL = 10 * time.Minute

// ErrInvalidState is returned for unknown, reused or expired OAuth states.
var ErrInvalidState = errors.New("calendar: oauth state is invalid or expired")

type pendingState struct {
	userID    string
	expiresAt time.Time
}

// StateStore issues single-use OAuth state nonces bound to a user.
type StateStore struct {
	mu     sync.Mutex
	states map[string]pendingState
	ttl    time.Duration
	now    func() time.Time
}

// NewStateStore creates a StateStore. A non-positive ttl uses DefaultStateTTL.
func NewStateStore(ttl time.Duration, now func() time.Time) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StateStore{states: make(map[string]pendingState), ttl: ttl, now: now}
}

// Issue returns a new state for userID.
func (s *StateStore) Issue(userID string) string {
	state := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, pending := range s.states {
		if !now.Before(pending.expiresAt) {
			delete(s.states, key)
		}
	}
	s.states[state] = pendingState{userID: userID, expiresAt: now.Add(s.ttl)}
	return state
}

// Consume resolves and forgets state.
func (s *StateStore) Consume(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.states[state]
	if !ok {
		return "", ErrInvalidState
	}
	delete(s.states, state)
	if !s.now().Before(pending.expiresAt) {
		return "", ErrInvalidState
	}
	return pending.userID, nil
}
