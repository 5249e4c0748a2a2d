package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/icebreaker-scheduler/internal/persistence"
)

// ProviderGoogle names Google Calendar credentials in the token store.
const ProviderGoogle = "google"

// ErrNotConnected is returned when a user has not connected a calendar.
var ErrNotConnected = errors.New("calendar: not connected")

// TokenStore persists OAuth tokens sealed.
type TokenStore struct {
	repo   persistence.CalendarTokenRepository
	sealer *Sealer
	now    func() time.Time
}

// NewTokenStore creates a TokenStore.
func NewTokenStore(repo persistence.CalendarTokenRepository, sealer *Sealer, now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{repo: repo, sealer: sealer, now: now}
}

// Save seals and stores token for userID.
func (s *TokenStore) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil {
		return errors.New("calendar: token is nil")
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	sealed, err := s.sealer.Seal(payload)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	now := s.now().UTC()
	record := persistence.CalendarToken{
		UserID:    userID,
		Provider:  ProviderGoogle,
		Sealed:    sealed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.SaveCalendarToken(ctx, record); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Load returns the stored token for userID or ErrNotConnected.
func (s *TokenStore) Load(ctx context.Context, userID string) (*oauth2.Token, error) {
	record, err := s.repo.GetCalendarToken(ctx, userID, ProviderGoogle)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	payload, err := s.sealer.Open(record.Sealed)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &token, nil
}

// Delete removes the stored token for userID.
func (s *TokenStore) Delete(ctx context.Context, userID string) error {
	err := s.repo.DeleteCalendarToken(ctx, userID, ProviderGoogle)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// persistingSource saves tokens the wrapped source refreshes.
type persistingSource struct {
	ctx    context.Context
	userID string
	store  *TokenStore
	source oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.source.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		if err := p.store.Save(p.ctx, p.userID, token); err != nil {
			return nil, err
		}
		p.last = token.AccessToken
	}
	return token, nil
}
