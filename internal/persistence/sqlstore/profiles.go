package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/icebreaker-scheduler/internal/persistence"
)

// GetProfile returns the stored profile for userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (persistence.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return persistence.Profile{}, persistence.ErrNotFound
	}

	var (
		profile persistence.Profile
		raw     []byte
	)
	err := s.queryRow(ctx, nil,
		`SELECT user_id, availability, updated_at FROM profiles WHERE user_id = ?`, userID,
	).Scan(&profile.UserID, &raw, timeColumn{&profile.UpdatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Profile{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Profile{}, s.dialect.mapError(err)
	}

	if err := json.Unmarshal(raw, &profile.Availability); err != nil {
		return persistence.Profile{}, fmt.Errorf("decode availability for %s: %w", userID, err)
	}
	return profile, nil
}

// SaveProfile inserts or replaces the profile for profile.UserID.
func (s *Store) SaveProfile(ctx context.Context, profile persistence.Profile) error {
	if strings.TrimSpace(profile.UserID) == "" {
		return persistence.ErrConstraintViolation
	}
	raw, err := json.Marshal(profile.Availability)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	updatedAt := profile.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	return s.retry.WithRetry(ctx, func() error {
		_, err := s.exec(ctx, nil, `
			INSERT INTO profiles (user_id, availability, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				availability = excluded.availability,
				updated_at = excluded.updated_at`,
			profile.UserID, string(raw), s.dialect.timeArg(updatedAt),
		)
		return err
	})
}
