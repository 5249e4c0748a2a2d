package persistence

import (
	"context"
	"time"
)

// ProfileRepository stores per-user availability.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	SaveProfile(ctx context.Context, profile Profile) error
}

// MeetingFilter narrows meeting queries. Empty fields do not filter.
type MeetingFilter struct {
	ParticipantIDs  []string
	Statuses        []string
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
}

// MeetingRepository stores meetings.
type MeetingRepository interface {
	// CreateMeeting inserts a meeting. When the meeting is pending and the
	// same two users already share a pending meeting, in either direction,
	// nothing is written and ErrDuplicate is returned. The check and the
	// insert are atomic.
	CreateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	// UpdateMeeting writes meeting if the stored version still equals
	// meeting.Version, returning the stored record with the next version.
	// A lost race yields ErrConflict; moving into a pending status while
	// another pending meeting exists for the pair yields ErrDuplicate.
	UpdateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	FindPendingBetween(ctx context.Context, userA, userB string) (Meeting, error)
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
}

// CalendarTokenRepository stores sealed external calendar credentials.
type CalendarTokenRepository interface {
	SaveCalendarToken(ctx context.Context, token CalendarToken) error
	GetCalendarToken(ctx context.Context, userID, provider string) (CalendarToken, error)
	DeleteCalendarToken(ctx context.Context, userID, provider string) error
}

// Store bundles the repositories a backing database provides.
type Store interface {
	ProfileRepository
	MeetingRepository
	CalendarTokenRepository
	Ping(ctx context.Context) error
	Close() error
}
