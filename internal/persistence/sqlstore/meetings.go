package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/icebreaker-scheduler/internal/persistence"
)

const meetingColumns = `id, requester_id, recipient_id, proposed_by, scheduled_at, status,
	meeting_type, location, connected_interest, proposed_at, created_at, updated_at, version`

// pendingStatusList renders persistence.PendingStatuses as a SQL literal list.
var pendingStatusList = "'" + strings.Join(persistence.PendingStatuses, "','") + "'"

func pairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func validateMeeting(m persistence.Meeting) error {
	switch {
	case strings.TrimSpace(m.ID) == "",
		strings.TrimSpace(m.RequesterID) == "",
		strings.TrimSpace(m.RecipientID) == "",
		m.RequesterID == m.RecipientID,
		m.Status == "",
		m.ScheduledAt.IsZero():
		return persistence.ErrConstraintViolation
	}
	return nil
}

// CreateMeeting inserts a meeting, refusing a second pending meeting for the
// same pair of users.
func (s *Store) CreateMeeting(ctx context.Context, m persistence.Meeting) (persistence.Meeting, error) {
	if err := validateMeeting(m); err != nil {
		return persistence.Meeting{}, err
	}
	now := s.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.ProposedAt.IsZero() {
		m.ProposedAt = m.CreatedAt
	}
	m.Version = 1
	low, high := pairKey(m.RequesterID, m.RecipientID)

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if persistence.IsPendingStatus(m.Status) {
			if err := s.ensureNoPendingTx(ctx, tx, low, high, ""); err != nil {
				return err
			}
		}

		_, err := s.exec(ctx, tx, `
			INSERT INTO meetings (`+meetingColumns+`, pair_low, pair_high)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.RequesterID, m.RecipientID, m.ProposedBy,
			s.dialect.timeArg(m.ScheduledAt), m.Status,
			m.MeetingType, m.Location, m.ConnectedInterest,
			s.dialect.timeArg(m.ProposedAt), s.dialect.timeArg(m.CreatedAt), s.dialect.timeArg(m.UpdatedAt),
			m.Version, low, high,
		)
		return err
	})
	if err != nil {
		return persistence.Meeting{}, err
	}
	return m, nil
}

// UpdateMeeting performs an optimistic update guarded by m.Version.
func (s *Store) UpdateMeeting(ctx context.Context, m persistence.Meeting) (persistence.Meeting, error) {
	if err := validateMeeting(m); err != nil {
		return persistence.Meeting{}, err
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}
	expected := m.Version
	low, high := pairKey(m.RequesterID, m.RecipientID)

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if persistence.IsPendingStatus(m.Status) {
			if err := s.ensureNoPendingTx(ctx, tx, low, high, m.ID); err != nil {
				return err
			}
		}

		result, err := s.exec(ctx, tx, `
			UPDATE meetings SET
				proposed_by = ?, scheduled_at = ?, status = ?, meeting_type = ?, location = ?,
				connected_interest = ?, proposed_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			m.ProposedBy, s.dialect.timeArg(m.ScheduledAt), m.Status, m.MeetingType, m.Location,
			m.ConnectedInterest, s.dialect.timeArg(m.ProposedAt), s.dialect.timeArg(m.UpdatedAt),
			m.ID, expected,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			return nil
		}

		var exists int
		err = s.queryRow(ctx, tx, `SELECT 1 FROM meetings WHERE id = ?`, m.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return s.dialect.mapError(err)
		}
		return persistence.ErrConflict
	})
	if err != nil {
		return persistence.Meeting{}, err
	}

	m.Version = expected + 1
	return m, nil
}

func (s *Store) ensureNoPendingTx(ctx context.Context, tx *sql.Tx, low, high, exceptID string) error {
	var id string
	err := s.queryRow(ctx, tx, `
		SELECT id FROM meetings
		WHERE pair_low = ? AND pair_high = ? AND status IN (`+pendingStatusList+`) AND id <> ?
		LIMIT 1`, low, high, exceptID,
	).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return s.dialect.mapError(err)
	default:
		return fmt.Errorf("%w: pending meeting %s already exists", persistence.ErrDuplicate, id)
	}
}

// GetMeeting returns a meeting by ID.
func (s *Store) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	if id == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	m, err := scanMeeting(s.queryRow(ctx, nil, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Meeting{}, s.dialect.mapError(err)
	}
	return m, nil
}

// FindPendingBetween returns the open proposal between two users, in either
// direction.
func (s *Store) FindPendingBetween(ctx context.Context, userA, userB string) (persistence.Meeting, error) {
	low, high := pairKey(userA, userB)
	m, err := scanMeeting(s.queryRow(ctx, nil, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE pair_low = ? AND pair_high = ? AND status IN (`+pendingStatusList+`)
		ORDER BY created_at DESC
		LIMIT 1`, low, high))
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Meeting{}, s.dialect.mapError(err)
	}
	return m, nil
}

// ListMeetings returns meetings matching filter ordered by scheduled time.
func (s *Store) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.ParticipantIDs) > 0 {
		marks := placeholders(len(filter.ParticipantIDs))
		clauses = append(clauses, "(requester_id IN ("+marks+") OR recipient_id IN ("+marks+"))")
		for range 2 {
			for _, id := range filter.ParticipantIDs {
				args = append(args, id)
			}
		}
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.ScheduledAfter != nil {
		clauses = append(clauses, "scheduled_at > ?")
		args = append(args, s.dialect.timeArg(*filter.ScheduledAfter))
	}
	if filter.ScheduledBefore != nil {
		clauses = append(clauses, "scheduled_at < ?")
		args = append(args, s.dialect.timeArg(*filter.ScheduledBefore))
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY scheduled_at ASC, id ASC"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meetings := make([]persistence.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, s.dialect.mapError(err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dialect.mapError(err)
	}
	return meetings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var m persistence.Meeting
	err := row.Scan(
		&m.ID, &m.RequesterID, &m.RecipientID, &m.ProposedBy,
		timeColumn{&m.ScheduledAt}, &m.Status,
		&m.MeetingType, &m.Location, &m.ConnectedInterest,
		timeColumn{&m.ProposedAt}, timeColumn{&m.CreatedAt}, timeColumn{&m.UpdatedAt},
		&m.Version,
	)
	return m, err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
