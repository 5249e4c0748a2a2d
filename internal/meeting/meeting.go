// Package meeting implements the lifecycle rules for a meeting between two
// users: who may act, in which status, and how stored meetings are presented.
package meeting

import (
	"fmt"
	"strings"
	"time"
)

// Status is the stored lifecycle status of a meeting.
type Status string

const (
	// StatusPending means a time has been proposed and awaits the other party.
	StatusPending Status = "pending"
	// StatusConfirmed means both parties agreed on the scheduled time.
	StatusConfirmed Status = "confirmed"
	// StatusDeclined means the responder rejected the proposal.
	StatusDeclined Status = "declined"
	// StatusCancelled means either party withdrew.
	StatusCancelled Status = "cancelled"
	// StatusRescheduleRequested is accepted from older records and treated
	// exactly like StatusPending. It is never written.
	StatusRescheduleRequested Status = "reschedule_requested"
	// StatusCompleted means the meeting took place.
	StatusCompleted Status = "completed"
)

// ParseStatus validates a stored status value.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusConfirmed, StatusDeclined, StatusCancelled, StatusRescheduleRequested, StatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("meeting: unknown status %q", value)
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// AwaitingResponse reports whether a proposed time awaits an answer.
func (s Status) AwaitingResponse() bool {
	return s == StatusPending || s == StatusRescheduleRequested
}

// Canonical folds legacy aliases onto the status the service writes.
func (s Status) Canonical() Status {
	if s == StatusRescheduleRequested {
		return StatusPending
	}
	return s
}

// Meeting is a proposed or agreed appointment between a requester and a
// recipient.
type Meeting struct {
	ID          string
	RequesterID string
	RecipientID string
	// ProposedBy is the participant who proposed the current ScheduledAt.
	// The other participant is the one expected to respond.
	ProposedBy        string
	ScheduledAt       time.Time
	Status            Status
	MeetingType       string
	Location          string
	ConnectedInterest string
	ProposedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsParticipant reports whether userID is the requester or the recipient.
func (m Meeting) IsParticipant(userID string) bool {
	return userID != "" && (userID == m.RequesterID || userID == m.RecipientID)
}

// Counterpart returns the other participant.
func (m Meeting) Counterpart(userID string) string {
	if userID == m.RequesterID {
		return m.RecipientID
	}
	return m.RequesterID
}

// Responder returns the participant expected to answer the current proposal.
func (m Meeting) Responder() string {
	proposer := m.ProposedBy
	if proposer == "" {
		proposer = m.RequesterID
	}
	return m.Counterpart(proposer)
}

// PairKey orders two user IDs so that (a, b) and (b, a) share a key.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// proposalTime is when the current proposal was made.
func (m Meeting) proposalTime() time.Time {
	if !m.ProposedAt.IsZero() {
		return m.ProposedAt
	}
	return m.CreatedAt
}
