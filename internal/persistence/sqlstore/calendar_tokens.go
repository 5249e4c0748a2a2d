package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/icebreaker-scheduler/internal/persistence"
)

// SaveCalendarToken inserts or replaces the sealed token for a user and provider.
func (s *Store) SaveCalendarToken(ctx context.Context, token persistence.CalendarToken) error {
	if token.UserID == "" || token.Provider == "" || len(token.Sealed) == 0 {
		return persistence.ErrConstraintViolation
	}
	now := s.now()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = now
	}

	return s.retry.WithRetry(ctx, func() error {
		_, err := s.exec(ctx, nil, `
			INSERT INTO calendar_tokens (user_id, provider, sealed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, provider) DO UPDATE SET
				sealed = excluded.sealed,
				updated_at = excluded.updated_at`,
			token.UserID, token.Provider, token.Sealed,
			s.dialect.timeArg(token.CreatedAt), s.dialect.timeArg(token.UpdatedAt),
		)
		return err
	})
}

// GetCalendarToken returns the sealed token for a user and provider.
func (s *Store) GetCalendarToken(ctx context.Context, userID, provider string) (persistence.CalendarToken, error) {
	var token persistence.CalendarToken
	err := s.queryRow(ctx, nil, `
		SELECT user_id, provider, sealed, created_at, updated_at
		FROM calendar_tokens WHERE user_id = ? AND provider = ?`, userID, provider,
	).Scan(&token.UserID, &token.Provider, &token.Sealed, timeColumn{&token.CreatedAt}, timeColumn{&token.UpdatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.CalendarToken{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.CalendarToken{}, s.dialect.mapError(err)
	}
	return token, nil
}

// DeleteCalendarToken removes the token for a user and provider.
func (s *Store) DeleteCalendarToken(ctx context.Context, userID, provider string) error {
	result, err := s.exec(ctx, nil, `DELETE FROM calendar_tokens WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
