package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/icebreaker-scheduler/internal/meeting"
)

// MeetingRepository captures the persistence interactions needed by the meeting service.
type MeetingRepository interface {
	// CreateMeeting fails with persistence.ErrDuplicate when the pair already
	// shares a pending meeting.
	CreateMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error)
	// UpdateMeeting fails with persistence.ErrConflict when record.Version is stale.
	UpdateMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error)
	GetMeeting(ctx context.Context, id string) (MeetingRecord, error)
	FindPendingBetween(ctx context.Context, userA, userB string) (MeetingRecord, error)
	ListMeetings(ctx context.Context, filter MeetingRepositoryFilter) ([]MeetingRecord, error)
}

// MeetingRepositoryFilter narrows queries issued to the meeting repository.
type MeetingRepositoryFilter struct {
	ParticipantIDs  []string
	Statuses        []meeting.Status
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
}

// MeetingNotifier delivers lifecycle events to a participant.
type MeetingNotifier interface {
	NotifyMeeting(ctx context.Context, userID string, event MeetingEvent) error
}

// CalendarSync mirrors confirmed meetings into external calendars.
type CalendarSync interface {
	CreateEvent(ctx context.Context, m meeting.Meeting) error
}

// TransitionObserver records lifecycle outcomes.
type TransitionObserver interface {
	MeetingTransition(action, outcome string)
	SideEffectFailed(kind string)
}

// MeetingServiceConfig tunes the meeting service.
type MeetingServiceConfig struct {
	Policy meeting.Policy
	// CompletionGrace is how long after the start a confirmed meeting is
	// completed by the sweep.
	CompletionGrace time.Duration
	// MaxFieldLength bounds free-text fields such as meeting type and location.
	MaxFieldLength int
}

// MeetingService runs the meeting lifecycle.
type MeetingService struct {
	meetings    MeetingRepository
	machine     *meeting.Machine
	notifier    MeetingNotifier
	calendar    CalendarSync
	observer    TransitionObserver
	cfg         MeetingServiceConfig
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

const actionRequest = "request"

// MeetingServiceOption customises optional collaborators.
type MeetingServiceOption func(*MeetingService)

// WithNotifier publishes lifecycle events.
func WithNotifier(notifier MeetingNotifier) MeetingServiceOption {
	return func(s *MeetingService) { s.notifier = notifier }
}

// WithCalendarSync creates calendar events for confirmed meetings.
func WithCalendarSync(calendar CalendarSync) MeetingServiceOption {
	return func(s *MeetingService) { s.calendar = calendar }
}

// WithTransitionObserver records transition metrics.
func WithTransitionObserver(observer TransitionObserver) MeetingServiceOption {
	return func(s *MeetingService) { s.observer = observer }
}

// NewMeetingService wires dependencies for meeting operations.
func NewMeetingService(meetings MeetingRepository, cfg MeetingServiceConfig, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...MeetingServiceOption) *MeetingService {
	if cfg.CompletionGrace <= 0 {
		cfg.CompletionGrace = 2 * time.Hour
	}
	if cfg.MaxFieldLength <= 0 {
		cfg.MaxFieldLength = 200
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &MeetingService{
		meetings:    meetings,
		machine:     meeting.NewMachine(cfg.Policy),
		cfg:         cfg,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Machine exposes the lifecycle rules the service enforces.
func (s *MeetingService) Machine() *meeting.Machine {
	return s.machine
}

// Request proposes a meeting at a chosen slot. It fails with
// ErrDuplicatePendingMeeting while the two users share an open proposal.
// A proposal that has already expired is withdrawn by the requester first.
func (s *MeetingService) Request(ctx context.Context, params RequestMeetingParams) (MeetingRecord, error) {
	if s == nil {
		return MeetingRecord{}, fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil {
		return MeetingRecord{}, fmt.Errorf("meeting repository not configured")
	}
	principal := params.Principal
	if principal.UserID == "" {
		return MeetingRecord{}, ErrUnauthorized
	}
	logger := serviceLogger(ctx, s.logger, "MeetingService", "Request", "user_id", principal.UserID, "recipient_id", params.RecipientID)

	vErr := &ValidationError{}
	recipientID := strings.TrimSpace(params.RecipientID)
	if recipientID == "" {
		vErr.add("recipient_id", "recipient is required")
	}
	if params.ScheduledAt.IsZero() {
		vErr.add("scheduled_at", "scheduled time is required")
	}
	vErr.merge(s.validateFreeText(params))
	if vErr.HasErrors() {
		return MeetingRecord{}, vErr
	}

	now := s.now()
	draft, err := s.machine.New(meeting.Meeting{
		ID:                s.idGenerator(),
		RequesterID:       principal.UserID,
		RecipientID:       recipientID,
		ScheduledAt:       params.ScheduledAt,
		MeetingType:       strings.TrimSpace(params.MeetingType),
		Location:          strings.TrimSpace(params.Location),
		ConnectedInterest: strings.TrimSpace(params.ConnectedInterest),
	}, now)
	if err != nil {
		mapped := mapLifecycleError(err)
		s.observe(actionRequest, mapped)
		return MeetingRecord{}, mapped
	}

	if err := s.supersedeExpired(ctx, logger, principal.UserID, recipientID, now); err != nil {
		s.observe(actionRequest, err)
		return MeetingRecord{}, err
	}

	created, err := s.meetings.CreateMeeting(ctx, MeetingRecord{Meeting: draft})
	if err != nil {
		mapped := mapMeetingRepoError(err)
		s.observe(actionRequest, mapped)
		if errors.Is(mapped, ErrDuplicatePendingMeeting) {
			logger.Info("meeting request rejected", "error_kind", ErrorKind(mapped))
		} else {
			logger.Error("failed to create meeting", "error", err)
		}
		return MeetingRecord{}, mapped
	}

	s.observe(actionRequest, nil)
	logger.Info("meeting requested", "meeting_id", created.ID, "scheduled_at", created.ScheduledAt)
	s.notify(ctx, logger, created.RecipientID, MeetingEvent{Type: EventMeetingRequested, Actor: principal.UserID, Meeting: created})
	return created, nil
}

// Confirm accepts the current proposal. Only the responder may confirm.
func (s *MeetingService) Confirm(ctx context.Context, params MeetingActionParams) (MeetingRecord, error) {
	return s.transition(ctx, params.Principal, params.MeetingID, meeting.Command{Action: meeting.ActionConfirm})
}

// Decline rejects the current proposal. Only the responder may decline.
func (s *MeetingService) Decline(ctx context.Context, params MeetingActionParams) (MeetingRecord, error) {
	return s.transition(ctx, params.Principal, params.MeetingID, meeting.Command{Action: meeting.ActionDecline})
}

// Cancel withdraws a pending or confirmed meeting. Confirmed meetings cannot
// be cancelled inside the cutoff window.
func (s *MeetingService) Cancel(ctx context.Context, params MeetingActionParams) (MeetingRecord, error) {
	return s.transition(ctx, params.Principal, params.MeetingID, meeting.Command{Action: meeting.ActionCancel})
}

// Complete marks a confirmed meeting that has started as held.
func (s *MeetingService) Complete(ctx context.Context, params MeetingActionParams) (MeetingRecord, error) {
	return s.transition(ctx, params.Principal, params.MeetingID, meeting.Command{Action: meeting.ActionComplete})
}

// ProposeNewTime moves a pending or confirmed meeting to a new time and
// hands the response to the other participant.
func (s *MeetingService) ProposeNewTime(ctx context.Context, params ProposeNewTimeParams) (MeetingRecord, error) {
	if params.ScheduledAt.IsZero() {
		return MeetingRecord{}, fieldError("scheduled_at", "scheduled time is required")
	}
	return s.transition(ctx, params.Principal, params.MeetingID, meeting.Command{Action: meeting.ActionProposeNewTime, NewTime: params.ScheduledAt})
}

// List returns the principal's meetings classified into views. When a view
// is given only meetings in that view are returned. Upcoming and awaiting
// meetings are ordered soonest first, history most recent first.
func (s *MeetingService) List(ctx context.Context, params ListMeetingsParams) ([]MeetingSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil {
		return nil, fmt.Errorf("meeting repository not configured")
	}
	userID := params.Principal.UserID
	if userID == "" {
		return nil, ErrUnauthorized
	}

	records, err := s.meetings.ListMeetings(ctx, MeetingRepositoryFilter{ParticipantIDs: []string{userID}})
	if err != nil {
		if isNotFoundError(err) {
			return []MeetingSummary{}, nil
		}
		return nil, err
	}

	now := s.now()
	summaries := make([]MeetingSummary, 0, len(records))
	for _, record := range records {
		if !record.IsParticipant(userID) {
			continue
		}
		summary := s.summarize(record, userID, now)
		if params.View != "" && summary.View != params.View {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.View != b.View {
			return viewRank(a.View) < viewRank(b.View)
		}
		if a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ID < b.ID
		}
		if a.View == meeting.ViewHistory {
			return a.ScheduledAt.After(b.ScheduledAt)
		}
		return a.ScheduledAt.Before(b.ScheduledAt)
	})
	return summaries, nil
}

// Summarize presents one stored meeting to userID.
func (s *MeetingService) Summarize(record MeetingRecord, userID string) MeetingSummary {
	return s.summarize(record, userID, s.now())
}

// CompleteElapsed marks confirmed meetings completed once their start plus
// the completion grace has passed. It returns how many were completed.
// Meetings changed concurrently are skipped and picked up on the next run.
func (s *MeetingService) CompleteElapsed(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil {
		return 0, fmt.Errorf("meeting repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "MeetingService", "CompleteElapsed")

	now := s.now()
	cutoff := now.Add(-s.cfg.CompletionGrace)
	records, err := s.meetings.ListMeetings(ctx, MeetingRepositoryFilter{
		Statuses:        []meeting.Status{meeting.StatusConfirmed},
		ScheduledBefore: &cutoff,
	})
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		logger.Error("failed to list elapsed meetings", "error", err)
		return 0, err
	}

	completed := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		next, err := s.machine.Apply(record.Meeting, meeting.Command{Actor: meeting.SystemActor, Action: meeting.ActionComplete}, now)
		if err != nil {
			logger.Warn("skipping meeting", "meeting_id", record.ID, "error", err)
			continue
		}
		updated, err := s.meetings.UpdateMeeting(ctx, MeetingRecord{Meeting: next, Version: record.Version})
		if err != nil {
			mapped := mapMeetingRepoError(err)
			s.observe(string(meeting.ActionComplete), mapped)
			if errors.Is(mapped, ErrConflict) || errors.Is(mapped, ErrNotFound) {
				logger.Info("meeting changed during sweep", "meeting_id", record.ID, "error_kind", ErrorKind(mapped))
				continue
			}
			logger.Error("failed to complete meeting", "meeting_id", record.ID, "error", err)
			return completed, err
		}
		completed++
		s.observe(string(meeting.ActionComplete), nil)
		event := MeetingEvent{Type: EventMeetingCompleted, Actor: meeting.SystemActor, Meeting: updated}
		s.notify(ctx, logger, updated.RequesterID, event)
		s.notify(ctx, logger, updated.RecipientID, event)
	}
	if completed > 0 {
		logger.Info("completed elapsed meetings", "count", completed)
	}
	return completed, nil
}

func (s *MeetingService) transition(ctx context.Context, principal Principal, meetingID string, cmd meeting.Command) (MeetingRecord, error) {
	if s == nil {
		return MeetingRecord{}, fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil {
		return MeetingRecord{}, fmt.Errorf("meeting repository not configured")
	}
	if principal.UserID == "" {
		return MeetingRecord{}, ErrUnauthorized
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return MeetingRecord{}, fieldError("meeting_id", "meeting id is required")
	}
	action := string(cmd.Action)
	logger := serviceLogger(ctx, s.logger, "MeetingService", action, "user_id", principal.UserID, "meeting_id", meetingID)

	existing, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		mapped := mapMeetingRepoError(err)
		s.observe(action, mapped)
		return MeetingRecord{}, mapped
	}
	if !existing.IsParticipant(principal.UserID) {
		// Meetings of other users are not disclosed.
		s.observe(action, ErrNotFound)
		return MeetingRecord{}, ErrNotFound
	}

	cmd.Actor = principal.UserID
	next, err := s.machine.Apply(existing.Meeting, cmd, s.now())
	if err != nil {
		mapped := mapLifecycleError(err)
		s.observe(action, mapped)
		logger.Info("transition rejected", "status", existing.Status, "error_kind", ErrorKind(mapped))
		return MeetingRecord{}, mapped
	}

	updated, err := s.meetings.UpdateMeeting(ctx, MeetingRecord{Meeting: next, Version: existing.Version})
	if err != nil {
		mapped := mapMeetingRepoError(err)
		s.observe(action, mapped)
		logger.Warn("failed to store transition", "error", err, "error_kind", ErrorKind(mapped))
		return MeetingRecord{}, mapped
	}

	s.observe(action, nil)
	logger.Info("meeting transitioned", "from", existing.Status, "to", updated.Status)

	if cmd.Action == meeting.ActionConfirm {
		s.syncCalendar(ctx, logger, updated)
	}
	s.notify(ctx, logger, updated.Counterpart(principal.UserID), MeetingEvent{
		Type:    eventFor(cmd.Action),
		Actor:   principal.UserID,
		Meeting: updated,
	})
	return updated, nil
}

// supersedeExpired withdraws an open proposal between the pair that has
// already expired, so it no longer blocks a fresh request. Expiry is
// otherwise derived at read time; this is the only place it changes stored
// state. No event is published for the withdrawal: the counterpart only
// hears about the new request.
func (s *MeetingService) supersedeExpired(ctx context.Context, logger *slog.Logger, requesterID, recipientID string, now time.Time) error {
	existing, err := s.meetings.FindPendingBetween(ctx, requesterID, recipientID)
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}
	if !s.machine.Expired(existing.Meeting, now) {
		return ErrDuplicatePendingMeeting
	}

	withdrawn, err := s.machine.Apply(existing.Meeting, meeting.Command{Actor: requesterID, Action: meeting.ActionCancel}, now)
	if err != nil {
		return mapLifecycleError(err)
	}
	if _, err := s.meetings.UpdateMeeting(ctx, MeetingRecord{Meeting: withdrawn, Version: existing.Version}); err != nil {
		return mapMeetingRepoError(err)
	}
	logger.Info("withdrew expired proposal", "meeting_id", existing.ID)
	return nil
}

func (s *MeetingService) summarize(record MeetingRecord, userID string, now time.Time) MeetingSummary {
	view := s.machine.Classify(record.Meeting, now)
	return MeetingSummary{
		MeetingRecord:      record,
		View:               view,
		CounterpartID:      record.Counterpart(userID),
		AwaitingMyResponse: view == meeting.ViewAwaiting && record.Responder() == userID,
		IceBreakerDue:      s.machine.IceBreakerDue(record.Meeting, now),
	}
}

func (s *MeetingService) validateFreeText(params RequestMeetingParams) *ValidationError {
	vErr := &ValidationError{}
	limit := s.cfg.MaxFieldLength
	for field, value := range map[string]string{
		"meeting_type":       params.MeetingType,
		"location":           params.Location,
		"connected_interest": params.ConnectedInterest,
	} {
		if len([]rune(value)) > limit {
			vErr.add(field, fmt.Sprintf("must be at most %d characters", limit))
		}
	}
	return vErr
}

// syncCalendar and notify never fail the operation that triggered them.
func (s *MeetingService) syncCalendar(ctx context.Context, logger *slog.Logger, record MeetingRecord) {
	if s.calendar == nil {
		return
	}
	if err := s.calendar.CreateEvent(ctx, record.Meeting); err != nil {
		s.sideEffectFailed("calendar_event")
		logger.Warn("calendar event creation failed", "error", err)
	}
}

func (s *MeetingService) notify(ctx context.Context, logger *slog.Logger, userID string, event MeetingEvent) {
	if s.notifier == nil || userID == "" || userID == meeting.SystemActor {
		return
	}
	if err := s.notifier.NotifyMeeting(ctx, userID, event); err != nil {
		s.sideEffectFailed("notification")
		logger.Warn("meeting notification failed", "recipient_id", userID, "event", event.Type, "error", err)
	}
}

func (s *MeetingService) observe(action string, err error) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ErrorKind(err)
	}
	s.observer.MeetingTransition(action, outcome)
}

func (s *MeetingService) sideEffectFailed(kind string) {
	if s.observer != nil {
		s.observer.SideEffectFailed(kind)
	}
}

func eventFor(action meeting.Action) string {
	switch action {
	case meeting.ActionConfirm:
		return EventMeetingConfirmed
	case meeting.ActionDecline:
		return EventMeetingDeclined
	case meeting.ActionCancel:
		return EventMeetingCancelled
	case meeting.ActionProposeNewTime:
		return EventMeetingRescheduled
	case meeting.ActionComplete:
		return EventMeetingCompleted
	default:
		return "meeting.updated"
	}
}

func viewRank(view meeting.View) int {
	switch view {
	case meeting.ViewAwaiting:
		return 0
	case meeting.ViewUpcoming:
		return 1
	default:
		return 2
	}
}
