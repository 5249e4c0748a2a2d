package persistence

import (
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
)

// Profile holds the scheduling data stored for a user.
type Profile struct {
	UserID       string
	Availability availability.Model
	UpdatedAt    time.Time
}

// Meeting is the stored form of a meeting between two users.
type Meeting struct {
	ID                string
	RequesterID       string
	RecipientID       string
	ProposedBy        string
	ScheduledAt       time.Time
	Status            string
	MeetingType       string
	Location          string
	ConnectedInterest string
	ProposedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// Version increments on every successful update.
	Version int64
}

// CalendarToken is a sealed OAuth token for a user's external calendar.
type CalendarToken struct {
	UserID    string
	Provider  string
	Sealed    []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingStatuses lists the stored statuses that count as an open proposal.
var PendingStatuses = []string{"pending", "reschedule_requested"}

// IsPendingStatus reports whether status counts as an open proposal.
func IsPendingStatus(status string) bool {
	for _, candidate := range PendingStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}
