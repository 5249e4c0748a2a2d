package meeting

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransition indicates the action is not allowed in the meeting's current status.
	ErrInvalidTransition = errors.New("meeting: transition not allowed")
	// ErrNotParticipant indicates the actor is neither requester nor recipient.
	ErrNotParticipant = errors.New("meeting: actor is not a participant")
	// ErrNotResponder indicates only the other participant may answer the proposal.
	ErrNotResponder = errors.New("meeting: only the invited participant can respond")
	// ErrCancellationWindow indicates a confirmed meeting is too close to cancel.
	ErrCancellationWindow = errors.New("meeting: confirmed meetings cannot be cancelled this close to the start")
	// ErrProposalExpired indicates the proposal went unanswered for too long or its time has passed.
	ErrProposalExpired = errors.New("meeting: proposal has expired")
	// ErrInvalidProposedTime indicates a re-proposed time is missing or not in the future.
	ErrInvalidProposedTime = errors.New("meeting: proposed time must be in the future")
	// ErrNotYetHeld indicates completion was requested before the meeting started.
	ErrNotYetHeld = errors.New("meeting: meeting has not started yet")
	// ErrSameParticipant indicates a user tried to meet themselves.
	ErrSameParticipant = errors.New("meeting: requester and recipient must differ")
)

// SystemActor performs automatic transitions such as the completion sweep.
const SystemActor = "system"

// Action is a participant command applied to a meeting.
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionDecline        Action = "decline"
	ActionCancel         Action = "cancel"
	ActionProposeNewTime Action = "propose_new_time"
	ActionComplete       Action = "complete"
)

// Command carries an action and its actor.
type Command struct {
	Actor   string
	Action  Action
	NewTime time.Time
}

const (
	// DefaultCancellationCutoff is how long before the start a confirmed meeting stops being cancellable.
	DefaultCancellationCutoff = 48 * time.Hour
	// DefaultPendingExpiry is how long an unanswered proposal stays open.
	DefaultPendingExpiry = 4 * 24 * time.Hour
)

// Policy holds the time-based lifecycle rules.
type Policy struct {
	CancellationCutoff time.Duration
	PendingExpiry      time.Duration
}

// DefaultPolicy returns the 48 hour cutoff and 4 day expiry.
func DefaultPolicy() Policy {
	return Policy{
		CancellationCutoff: DefaultCancellationCutoff,
		PendingExpiry:      DefaultPendingExpiry,
	}
}

func (p Policy) withDefaults() Policy {
	if p.CancellationCutoff <= 0 {
		p.CancellationCutoff = DefaultCancellationCutoff
	}
	if p.PendingExpiry <= 0 {
		p.PendingExpiry = DefaultPendingExpiry
	}
	return p
}

// Machine validates and applies lifecycle transitions.
type Machine struct {
	policy      Policy
	transitions map[Status][]Status
}

// NewMachine creates a Machine with the standard transition table.
func NewMachine(policy Policy) *Machine {
	return &Machine{
		policy: policy.withDefaults(),
		transitions: map[Status][]Status{
			StatusPending:   {StatusConfirmed, StatusDeclined, StatusCancelled, StatusPending},
			StatusConfirmed: {StatusCancelled, StatusPending, StatusCompleted},
		},
	}
}

// Policy returns the rules the machine enforces.
func (m *Machine) Policy() Policy {
	return m.policy
}

// CanTransition checks if moving from one status to another is allowed.
func (m *Machine) CanTransition(from, to Status) bool {
	for _, allowed := range m.transitions[from.Canonical()] {
		if allowed == to {
			return true
		}
	}
	return false
}

// New builds a pending meeting proposed by the requester.
func (m *Machine) New(meeting Meeting, now time.Time) (Meeting, error) {
	if meeting.RequesterID == "" || meeting.RecipientID == "" {
		return Meeting{}, ErrNotParticipant
	}
	if meeting.RequesterID == meeting.RecipientID {
		return Meeting{}, ErrSameParticipant
	}
	if !meeting.ScheduledAt.After(now) {
		return Meeting{}, ErrInvalidProposedTime
	}
	meeting.Status = StatusPending
	meeting.ProposedBy = meeting.RequesterID
	meeting.ProposedAt = now
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	return meeting, nil
}

// Apply validates cmd against the meeting and returns the updated meeting.
// The input is never modified.
func (m *Machine) Apply(meeting Meeting, cmd Command, now time.Time) (Meeting, error) {
	if cmd.Actor == SystemActor {
		if cmd.Action != ActionComplete {
			return Meeting{}, ErrNotParticipant
		}
	} else if !meeting.IsParticipant(cmd.Actor) {
		return Meeting{}, ErrNotParticipant
	}

	target, err := targetStatus(cmd.Action)
	if err != nil {
		return Meeting{}, err
	}
	if !m.CanTransition(meeting.Status, target) {
		return Meeting{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, cmd.Action, meeting.Status)
	}

	next := meeting
	switch cmd.Action {
	case ActionConfirm, ActionDecline:
		if cmd.Actor != meeting.Responder() {
			return Meeting{}, ErrNotResponder
		}
		if cmd.Action == ActionConfirm && m.Expired(meeting, now) {
			return Meeting{}, ErrProposalExpired
		}
	case ActionCancel:
		if meeting.Status == StatusConfirmed && !now.Before(meeting.ScheduledAt.Add(-m.policy.CancellationCutoff)) {
			return Meeting{}, ErrCancellationWindow
		}
	case ActionProposeNewTime:
		// An open proposal can only be countered, not re-proposed by its author.
		if meeting.Status.AwaitingResponse() && cmd.Actor != meeting.Responder() {
			return Meeting{}, ErrNotResponder
		}
		if cmd.NewTime.IsZero() || !cmd.NewTime.After(now) {
			return Meeting{}, ErrInvalidProposedTime
		}
		next.ScheduledAt = cmd.NewTime
		next.ProposedBy = cmd.Actor
		next.ProposedAt = now
	case ActionComplete:
		if now.Before(meeting.ScheduledAt) {
			return Meeting{}, ErrNotYetHeld
		}
	}

	next.Status = target
	next.UpdatedAt = now
	return next, nil
}

// Expired reports whether an unanswered proposal has lapsed, either because
// it is older than the pending expiry or because its time has passed.
func (m *Machine) Expired(meeting Meeting, now time.Time) bool {
	if !meeting.Status.AwaitingResponse() {
		return false
	}
	if now.Sub(meeting.proposalTime()) > m.policy.PendingExpiry {
		return true
	}
	return !meeting.ScheduledAt.After(now)
}

func targetStatus(action Action) (Status, error) {
	switch action {
	case ActionConfirm:
		return StatusConfirmed, nil
	case ActionDecline:
		return StatusDeclined, nil
	case ActionCancel:
		return StatusCancelled, nil
	case ActionProposeNewTime:
		return StatusPending, nil
	case ActionComplete:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
}
