package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/ranking"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

func onlyDay(day time.Weekday, start, end int) availability.Model {
	var m availability.Model
	m.Days[day] = availability.DayAvailability{Active: true, Start: availability.MustTimeOfDay(start, 0), End: availability.MustTimeOfDay(end, 0)}
	return m
}

func newSuggestionService(profiles ProfileRepository, meetings MeetingRepository, ranker SlotRanker) *SuggestionService {
	return NewSuggestionService(profiles, meetings, slots.NewEngine(time.UTC), ranker, slots.DefaultOptions(), func() time.Time { return testNow }, nil)
}

func TestSuggestionService_RanksMutualSlots(t *testing.T) {
	t.Parallel()
	profiles := newProfileRepoStub()
	profiles.models["alice"] = onlyDay(time.Tuesday, 9, 17)
	profiles.models["bob"] = onlyDay(time.Tuesday, 12, 14)

	ranker := &rankerStub{result: func(req ranking.Request) ranking.Result {
		picked := req.Candidates[1]
		picked.Rationale = "after lunch"
		return ranking.Result{Slots: []slots.TimeSlot{picked}, Mode: ranking.ModeRanked}
	}}
	svc := newSuggestionService(profiles, newMeetingRepoStub(), ranker)

	result, err := svc.Suggest(context.Background(), SuggestParams{Principal: alice(), RecipientID: "bob", Preference: " afternoons "})
	if err != nil {
		t.Fatalf("Suggest returned error: %v", err)
	}
	if result.Mode != ranking.ModeRanked || len(result.Slots) != 1 || result.Slots[0].Rationale != "after lunch" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(ranker.requests) != 1 {
		t.Fatalf("expected one ranking call")
	}
	req := ranker.requests[0]
	// Two Tuesdays in the horizon, two slots each.
	if len(req.Candidates) != 4 || req.Preference != "afternoons" || req.Location != time.UTC {
		t.Fatalf("unexpected ranking request %+v", req)
	}
}

func TestSuggestionService_NoOverlap(t *testing.T) {
	t.Parallel()
	profiles := newProfileRepoStub()
	profiles.models["alice"] = onlyDay(time.Monday, 9, 17)
	profiles.models["bob"] = onlyDay(time.Tuesday, 9, 17)
	ranker := &rankerStub{}
	svc := newSuggestionService(profiles, nil, ranker)

	result, err := svc.Suggest(context.Background(), SuggestParams{Principal: alice(), RecipientID: "bob"})
	if err != nil {
		t.Fatalf("Suggest returned error: %v", err)
	}
	if !result.NoOverlap || result.Slots == nil || len(result.Slots) != 0 {
		t.Fatalf("expected empty no-overlap result, got %+v", result)
	}
	if len(ranker.requests) != 0 {
		t.Fatalf("ranker must not be called without candidates")
	}
}

func TestSuggestionService_SkipsBookedSlots(t *testing.T) {
	t.Parallel()
	profiles := newProfileRepoStub()
	profiles.models["alice"] = onlyDay(time.Tuesday, 12, 14)
	profiles.models["bob"] = onlyDay(time.Tuesday, 12, 14)

	// Bob already meets carol at 12:00 on the first Tuesday.
	booked := storedMeeting("booked", "confirmed", 27*time.Hour, 24*time.Hour)
	booked.RequesterID, booked.RecipientID = "carol", "bob"
	declined := storedMeeting("declined", "declined", 28*time.Hour, 24*time.Hour)
	meetings := newMeetingRepoStub(booked, declined)

	svc := newSuggestionService(profiles, meetings, nil)
	result, err := svc.Suggest(context.Background(), SuggestParams{Principal: alice(), RecipientID: "bob"})
	if err != nil {
		t.Fatalf("Suggest returned error: %v", err)
	}
	if len(result.Slots) != 3 {
		t.Fatalf("expected 3 free slots, got %+v", result.Slots)
	}
	if result.Slots[0].Start != availability.MustTimeOfDay(13, 0) {
		t.Fatalf("expected the booked 12:00 slot to be skipped, got %+v", result.Slots[0])
	}
	if result.Mode != ranking.ModeFallback || result.FallbackReason != ranking.ReasonNoGateway {
		t.Fatalf("expected chronological fallback without a ranker, got %+v", result)
	}
}

func TestSuggestionService_LapsedProposalDoesNotBlock(t *testing.T) {
	t.Parallel()
	profiles := newProfileRepoStub()
	profiles.models["alice"] = onlyDay(time.Tuesday, 12, 14)
	profiles.models["bob"] = onlyDay(time.Tuesday, 12, 14)

	// Proposed five days ago and never answered: already in history.
	lapsed := storedMeeting("lapsed", "pending", 27*time.Hour, 5*24*time.Hour)
	open := storedMeeting("open", "pending", 28*time.Hour, time.Hour)
	open.RequesterID, open.RecipientID, open.ProposedBy = "carol", "alice", "carol"

	svc := newSuggestionService(profiles, newMeetingRepoStub(lapsed, open), nil)
	result, err := svc.Suggest(context.Background(), SuggestParams{Principal: alice(), RecipientID: "bob"})
	if err != nil {
		t.Fatalf("Suggest returned error: %v", err)
	}
	if len(result.Slots) != 3 {
		t.Fatalf("expected 3 free slots, got %+v", result.Slots)
	}
	if result.Slots[0].Start != availability.MustTimeOfDay(12, 0) {
		t.Fatalf("lapsed proposal must not block 12:00, got %+v", result.Slots[0])
	}
	if result.Slots[1].Date == result.Slots[0].Date {
		t.Fatalf("open proposal should still block 13:00, got %+v", result.Slots[1])
	}

	strict := NewSuggestionService(profiles, newMeetingRepoStub(lapsed), slots.NewEngine(time.UTC), nil, slots.DefaultOptions(),
		func() time.Time { return testNow }, nil, WithExpiryPolicy(meeting.Policy{PendingExpiry: 30 * 24 * time.Hour}))
	result, err = strict.Suggest(context.Background(), SuggestParams{Principal: alice(), RecipientID: "bob"})
	if err != nil {
		t.Fatalf("Suggest returned error: %v", err)
	}
	if result.Slots[0].Start != availability.MustTimeOfDay(13, 0) {
		t.Fatalf("with a longer expiry the proposal still blocks 12:00, got %+v", result.Slots[0])
	}
}

func TestSuggestionService_Validation(t *testing.T) {
	t.Parallel()
	svc := newSuggestionService(newProfileRepoStub(), nil, nil)
	ctx := context.Background()

	var vErr *ValidationError
	if _, err := svc.Suggest(ctx, SuggestParams{Principal: alice()}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Suggest(ctx, SuggestParams{Principal: alice(), RecipientID: "alice"}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for self, got %v", err)
	}
	if _, err := svc.Suggest(ctx, SuggestParams{RecipientID: "bob"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSuggestionService_PropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	profiles := newProfileRepoStub()
	profiles.models["alice"] = onlyDay(time.Tuesday, 9, 17)
	profiles.models["bob"] = onlyDay(time.Tuesday, 9, 17)
	meetings := newMeetingRepoStub()
	meetings.listErr = errBoom

	svc := newSuggestionService(profiles, meetings, nil)
	if _, err := svc.Suggest(context.Background(), SuggestParams{Principal: alice(), RecipientID: "bob"}); !errors.Is(err, errBoom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
