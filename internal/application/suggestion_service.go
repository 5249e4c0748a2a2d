package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/ranking"
	"github.com/example/icebreaker-scheduler/internal/scheduler"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

// SlotRanker orders candidate slots. It never fails.
type SlotRanker interface {
	Rank(ctx context.Context, req ranking.Request) ranking.Result
}

// SuggestionService proposes mutual meeting times for two users.
type SuggestionService struct {
	profiles ProfileRepository
	meetings MeetingRepository
	engine   *slots.Engine
	ranker   SlotRanker
	opts     slots.Options
	machine  *meeting.Machine
	now      func() time.Time
	logger   *slog.Logger
}

// SuggestionServiceOption customises optional behaviour.
type SuggestionServiceOption func(*SuggestionService)

// WithExpiryPolicy sets the policy used to recognise lapsed proposals.
// Lapsed proposals do not block candidate slots.
func WithExpiryPolicy(policy meeting.Policy) SuggestionServiceOption {
	return func(s *SuggestionService) { s.machine = meeting.NewMachine(policy) }
}

// NewSuggestionService wires dependencies for suggestion operations.
func NewSuggestionService(profiles ProfileRepository, meetings MeetingRepository, engine *slots.Engine, ranker SlotRanker, opts slots.Options, now func() time.Time, logger *slog.Logger, options ...SuggestionServiceOption) *SuggestionService {
	if engine == nil {
		engine = slots.NewEngine(time.UTC)
	}
	if now == nil {
		now = time.Now
	}
	s := &SuggestionService{
		profiles: profiles,
		meetings: meetings,
		engine:   engine,
		ranker:   ranker,
		opts:     opts,
		machine:  meeting.NewMachine(meeting.DefaultPolicy()),
		now:      now,
		logger:   defaultLogger(logger),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Suggest computes the slots both users are free for, drops those that
// clash with either user's open or confirmed meetings, and ranks the rest.
// An empty result with NoOverlap set means the users share no free time.
func (s *SuggestionService) Suggest(ctx context.Context, params SuggestParams) (SuggestionResult, error) {
	if s == nil {
		return SuggestionResult{}, fmt.Errorf("SuggestionService is nil")
	}
	requesterID := params.Principal.UserID
	if requesterID == "" {
		return SuggestionResult{}, ErrUnauthorized
	}
	recipientID := strings.TrimSpace(params.RecipientID)
	switch {
	case recipientID == "":
		return SuggestionResult{}, fieldError("recipient_id", "recipient is required")
	case recipientID == requesterID:
		return SuggestionResult{}, fieldError("recipient_id", "cannot schedule a meeting with yourself")
	}
	logger := serviceLogger(ctx, s.logger, "SuggestionService", "Suggest", "user_id", requesterID, "recipient_id", recipientID)

	requester, err := s.loadAvailability(ctx, requesterID)
	if err != nil {
		logger.Error("failed to load requester availability", "error", err)
		return SuggestionResult{}, err
	}
	recipient, err := s.loadAvailability(ctx, recipientID)
	if err != nil {
		logger.Error("failed to load recipient availability", "error", err)
		return SuggestionResult{}, err
	}

	now := s.now()
	candidates := s.engine.ComputeOverlap(requester, recipient, now, s.opts)
	if len(candidates) == 0 {
		logger.Info("no mutual availability")
		return SuggestionResult{Slots: []slots.TimeSlot{}, Mode: ranking.ModeFallback, FallbackReason: ranking.ReasonNoCandidates, NoOverlap: true}, nil
	}

	busy, err := s.busySchedules(ctx, []string{requesterID, recipientID}, now)
	if err != nil {
		logger.Error("failed to load existing meetings", "error", err)
		return SuggestionResult{}, err
	}
	candidates = scheduler.FilterAvailable(candidates, busy, []string{requesterID, recipientID}, s.engine.Location())
	if len(candidates) == 0 {
		logger.Info("all mutual slots are already booked")
		return SuggestionResult{Slots: []slots.TimeSlot{}, Mode: ranking.ModeFallback, FallbackReason: ranking.ReasonNoCandidates}, nil
	}

	if s.ranker == nil {
		return SuggestionResult{Slots: candidates, Mode: ranking.ModeFallback, FallbackReason: ranking.ReasonNoGateway}, nil
	}
	result := s.ranker.Rank(ctx, ranking.Request{
		Requester:  requester,
		Recipient:  recipient,
		Preference: strings.TrimSpace(params.Preference),
		Candidates: candidates,
		Location:   s.engine.Location(),
		Now:        now,
	})
	logger.Info("suggestions ready", "candidates", len(candidates), "slots", len(result.Slots), "mode", result.Mode, "fallback_reason", result.FallbackReason)
	return SuggestionResult{Slots: result.Slots, Mode: result.Mode, FallbackReason: result.FallbackReason}, nil
}

func (s *SuggestionService) loadAvailability(ctx context.Context, userID string) (availability.Model, error) {
	if s.profiles == nil {
		return availability.Default(), nil
	}
	model, err := s.profiles.GetAvailability(ctx, userID)
	if err != nil {
		if isNotFoundError(err) {
			return availability.Default(), nil
		}
		return availability.Model{}, err
	}
	return model, nil
}

// busySchedules returns the still-relevant pending and confirmed meetings of
// the participants as blocks of one slot length. Lapsed proposals are
// history and are skipped.
func (s *SuggestionService) busySchedules(ctx context.Context, participants []string, now time.Time) ([]scheduler.Schedule, error) {
	if s.meetings == nil {
		return nil, nil
	}
	length := s.opts.SlotLength
	if length <= 0 {
		length = slots.DefaultSlotLength
	}
	after := now.Add(-length)
	records, err := s.meetings.ListMeetings(ctx, MeetingRepositoryFilter{
		ParticipantIDs: participants,
		Statuses:       []meeting.Status{meeting.StatusPending, meeting.StatusRescheduleRequested, meeting.StatusConfirmed},
		ScheduledAfter: &after,
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	busy := make([]scheduler.Schedule, 0, len(records))
	for _, record := range records {
		if s.machine.Expired(record.Meeting, now) {
			continue
		}
		busy = append(busy, scheduler.Schedule{
			ID:           record.ID,
			Participants: []string{record.RequesterID, record.RecipientID},
			Start:        record.ScheduledAt,
			End:          record.ScheduledAt.Add(length),
		})
	}
	return busy, nil
}
