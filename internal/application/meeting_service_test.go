package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/persistence"
)

type meetingHarness struct {
	service  *MeetingService
	repo     *meetingRepoStub
	notifier *notifierStub
	calendar *calendarStub
	observer *observerStub
	now      time.Time
}

func newMeetingHarness(t *testing.T, records ...MeetingRecord) *meetingHarness {
	t.Helper()
	h := &meetingHarness{
		repo:     newMeetingRepoStub(records...),
		notifier: &notifierStub{},
		calendar: &calendarStub{},
		observer: &observerStub{},
		now:      testNow,
	}
	h.service = NewMeetingService(
		h.repo,
		MeetingServiceConfig{Policy: meeting.DefaultPolicy()},
		sequentialIDs(),
		func() time.Time { return h.now },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithNotifier(h.notifier),
		WithCalendarSync(h.calendar),
		WithTransitionObserver(h.observer),
	)
	return h
}

func alice() Principal { return Principal{UserID: "alice"} }
func bob() Principal   { return Principal{UserID: "bob"} }

func storedMeeting(id, status string, scheduledIn, proposedAgo time.Duration) MeetingRecord {
	proposedAt := testNow.Add(-proposedAgo)
	return MeetingRecord{
		Meeting: meeting.Meeting{
			ID:          id,
			RequesterID: "alice",
			RecipientID: "bob",
			ProposedBy:  "alice",
			ScheduledAt: testNow.Add(scheduledIn),
			Status:      meeting.Status(status),
			MeetingType: "coffee",
			ProposedAt:  proposedAt,
			CreatedAt:   proposedAt,
			UpdatedAt:   proposedAt,
		},
		Version: 1,
	}
}

func TestMeetingService_RequestCreatesPendingMeeting(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t)

	created, err := h.service.Request(context.Background(), RequestMeetingParams{
		Principal:         alice(),
		RecipientID:       "bob",
		ScheduledAt:       testNow.Add(72 * time.Hour),
		MeetingType:       " coffee ",
		ConnectedInterest: "climbing",
	})
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if created.ID != "meeting-1" || created.Status != meeting.StatusPending || created.Version != 1 {
		t.Fatalf("unexpected meeting %+v", created)
	}
	if created.MeetingType != "coffee" || created.ProposedBy != "alice" || !created.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected meeting fields %+v", created.Meeting)
	}
	if h.notifier.count("bob") != 1 || h.notifier.events["bob"][0].Type != EventMeetingRequested {
		t.Fatalf("expected recipient notification, got %+v", h.notifier.events)
	}
	if h.observer.transitions["request/ok"] != 1 {
		t.Fatalf("expected request to be observed, got %+v", h.observer.transitions)
	}
}

func TestMeetingService_RequestRejectsSecondPendingInEitherDirection(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t)
	ctx := context.Background()

	if _, err := h.service.Request(ctx, RequestMeetingParams{Principal: alice(), RecipientID: "bob", ScheduledAt: testNow.Add(72 * time.Hour)}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := h.service.Request(ctx, RequestMeetingParams{Principal: alice(), RecipientID: "bob", ScheduledAt: testNow.Add(96 * time.Hour)})
	if !errors.Is(err, ErrDuplicatePendingMeeting) {
		t.Fatalf("expected ErrDuplicatePendingMeeting, got %v", err)
	}

	_, err = h.service.Request(ctx, RequestMeetingParams{Principal: bob(), RecipientID: "alice", ScheduledAt: testNow.Add(96 * time.Hour)})
	if !errors.Is(err, ErrDuplicatePendingMeeting) {
		t.Fatalf("expected ErrDuplicatePendingMeeting for reverse direction, got %v", err)
	}
	if ErrorKind(err) != "duplicate_pending_meeting" {
		t.Fatalf("unexpected error kind %q", ErrorKind(err))
	}
	if len(h.repo.records) != 1 {
		t.Fatalf("expected a single stored meeting, got %d", len(h.repo.records))
	}
}

func TestMeetingService_RequestMapsStoreDuplicate(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t)
	// The store catches a race the pre-check missed.
	h.repo.createErr = persistence.ErrDuplicate

	_, err := h.service.Request(context.Background(), RequestMeetingParams{Principal: alice(), RecipientID: "bob", ScheduledAt: testNow.Add(72 * time.Hour)})
	if !errors.Is(err, ErrDuplicatePendingMeeting) || !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate error chain, got %v", err)
	}
}

func TestMeetingService_RequestSupersedesExpiredProposal(t *testing.T) {
	t.Parallel()
	stale := storedMeeting("old", "pending", 10*24*time.Hour, 5*24*time.Hour)
	h := newMeetingHarness(t, stale)

	created, err := h.service.Request(context.Background(), RequestMeetingParams{Principal: bob(), RecipientID: "alice", ScheduledAt: testNow.Add(72 * time.Hour)})
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if created.Status != meeting.StatusPending {
		t.Fatalf("unexpected status %s", created.Status)
	}
	if got := h.repo.get("old"); got.Status != meeting.StatusCancelled {
		t.Fatalf("expected expired proposal to be withdrawn, got %s", got.Status)
	}
	if h.notifier.count("alice") != 1 || h.notifier.events["alice"][0].Type != EventMeetingRequested {
		t.Fatalf("expected only the request notification, got %+v", h.notifier.events["alice"])
	}
}

func TestMeetingService_RequestValidation(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params RequestMeetingParams
		field  string
	}{
		{name: "missing recipient", params: RequestMeetingParams{Principal: alice(), ScheduledAt: testNow.Add(time.Hour)}, field: "recipient_id"},
		{name: "missing time", params: RequestMeetingParams{Principal: alice(), RecipientID: "bob"}, field: "scheduled_at"},
		{name: "self", params: RequestMeetingParams{Principal: alice(), RecipientID: "alice", ScheduledAt: testNow.Add(time.Hour)}, field: "recipient_id"},
		{name: "past time", params: RequestMeetingParams{Principal: alice(), RecipientID: "bob", ScheduledAt: testNow.Add(-time.Hour)}, field: "scheduled_at"},
	}
	for _, tc := range cases {
		_, err := h.service.Request(ctx, tc.params)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if _, ok := vErr.FieldErrors[tc.field]; !ok {
			t.Fatalf("%s: expected %s field error, got %+v", tc.name, tc.field, vErr.FieldErrors)
		}
	}

	if _, err := h.service.Request(ctx, RequestMeetingParams{RecipientID: "bob", ScheduledAt: testNow.Add(time.Hour)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMeetingService_ConfirmOnlyByResponder(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t, storedMeeting("m1", "pending", 72*time.Hour, time.Hour))
	ctx := context.Background()

	if _, err := h.service.Confirm(ctx, MeetingActionParams{Principal: alice(), MeetingID: "m1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for the proposer, got %v", err)
	}
	if _, err := h.service.Confirm(ctx, MeetingActionParams{Principal: Principal{UserID: "mallory"}, MeetingID: "m1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for outsiders, got %v", err)
	}
	if _, err := h.service.Confirm(ctx, MeetingActionParams{Principal: bob(), MeetingID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	confirmed, err := h.service.Confirm(ctx, MeetingActionParams{Principal: bob(), MeetingID: "m1"})
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if confirmed.Status != meeting.StatusConfirmed || confirmed.Version != 2 {
		t.Fatalf("unexpected confirmed meeting %+v", confirmed)
	}
	if len(h.calendar.created) != 1 {
		t.Fatalf("expected calendar event to be created")
	}
	if h.notifier.count("alice") != 1 || h.notifier.events["alice"][0].Type != EventMeetingConfirmed {
		t.Fatalf("expected requester notification, got %+v", h.notifier.events)
	}

	if _, err := h.service.Decline(ctx, MeetingActionParams{Principal: bob(), MeetingID: "m1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict declining a confirmed meeting, got %v", err)
	}
}

func TestMeetingService_SideEffectFailuresAreSwallowed(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t, storedMeeting("m1", "pending", 72*time.Hour, time.Hour))
	h.calendar.err = errBoom
	h.notifier.err = errBoom

	confirmed, err := h.service.Confirm(context.Background(), MeetingActionParams{Principal: bob(), MeetingID: "m1"})
	if err != nil {
		t.Fatalf("side effect errors must not fail the transition: %v", err)
	}
	if confirmed.Status != meeting.StatusConfirmed || h.repo.get("m1").Status != meeting.StatusConfirmed {
		t.Fatalf("expected confirmed status to be stored")
	}
	if h.observer.sideEffects["calendar_event"] != 1 || h.observer.sideEffects["notification"] != 1 {
		t.Fatalf("expected side effect failures to be counted, got %+v", h.observer.sideEffects)
	}
}

func TestMeetingService_CancellationCutoff(t *testing.T) {
	t.Parallel()
	near := storedMeeting("near", "confirmed", 47*time.Hour, 24*time.Hour)
	far := storedMeeting("far", "confirmed", 49*time.Hour, 24*time.Hour)
	far.RecipientID = "carol"
	h := newMeetingHarness(t, near, far)
	ctx := context.Background()

	if _, err := h.service.Cancel(ctx, MeetingActionParams{Principal: alice(), MeetingID: "near"}); !errors.Is(err, ErrCancellationWindow) {
		t.Fatalf("expected ErrCancellationWindow at 47h, got %v", err)
	}
	if h.repo.get("near").Status != meeting.StatusConfirmed {
		t.Fatalf("rejected cancellation must not change the meeting")
	}

	cancelled, err := h.service.Cancel(ctx, MeetingActionParams{Principal: Principal{UserID: "carol"}, MeetingID: "far"})
	if err != nil || cancelled.Status != meeting.StatusCancelled {
		t.Fatalf("expected cancellation at 49h, got %+v %v", cancelled, err)
	}
}

func TestMeetingService_ProposeNewTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("confirmed meeting returns to pending for the other party", func(t *testing.T) {
		t.Parallel()
		h := newMeetingHarness(t, storedMeeting("m1", "confirmed", 72*time.Hour, 24*time.Hour))
		newTime := testNow.Add(120 * time.Hour)

		next, err := h.service.ProposeNewTime(ctx, ProposeNewTimeParams{Principal: bob(), MeetingID: "m1", ScheduledAt: newTime})
		if err != nil {
			t.Fatalf("ProposeNewTime returned error: %v", err)
		}
		if next.Status != meeting.StatusPending || !next.ScheduledAt.Equal(newTime) || next.Responder() != "alice" {
			t.Fatalf("unexpected rescheduled meeting %+v", next.Meeting)
		}
		if h.notifier.events["alice"][0].Type != EventMeetingRescheduled {
			t.Fatalf("expected reschedule notification")
		}
	})

	t.Run("cannot create a second open proposal for the pair", func(t *testing.T) {
		t.Parallel()
		h := newMeetingHarness(t,
			storedMeeting("confirmed", "confirmed", 72*time.Hour, 24*time.Hour),
			storedMeeting("open", "pending", 96*time.Hour, time.Hour),
		)
		_, err := h.service.ProposeNewTime(ctx, ProposeNewTimeParams{Principal: alice(), MeetingID: "confirmed", ScheduledAt: testNow.Add(120 * time.Hour)})
		if !errors.Is(err, ErrDuplicatePendingMeeting) {
			t.Fatalf("expected ErrDuplicatePendingMeeting, got %v", err)
		}
	})

	t.Run("proposer of an open proposal is forbidden", func(t *testing.T) {
		t.Parallel()
		h := newMeetingHarness(t, storedMeeting("m1", "pending", 72*time.Hour, time.Hour))
		_, err := h.service.ProposeNewTime(ctx, ProposeNewTimeParams{Principal: alice(), MeetingID: "m1", ScheduledAt: testNow.Add(120 * time.Hour)})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("requires a future time", func(t *testing.T) {
		t.Parallel()
		h := newMeetingHarness(t, storedMeeting("m1", "pending", 72*time.Hour, time.Hour))
		var vErr *ValidationError
		if _, err := h.service.ProposeNewTime(ctx, ProposeNewTimeParams{Principal: bob(), MeetingID: "m1"}); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, err := h.service.ProposeNewTime(ctx, ProposeNewTimeParams{Principal: bob(), MeetingID: "m1", ScheduledAt: testNow.Add(-time.Minute)}); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error for past time, got %v", err)
		}
	})
}

func TestMeetingService_StaleVersionIsConflict(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t, storedMeeting("m1", "pending", 72*time.Hour, time.Hour))
	h.repo.updateErr = persistence.ErrConflict

	_, err := h.service.Confirm(context.Background(), MeetingActionParams{Principal: bob(), MeetingID: "m1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if h.notifier.count("alice") != 0 {
		t.Fatalf("failed transitions must not notify")
	}
}

func TestMeetingService_ListClassifiesIntoViews(t *testing.T) {
	t.Parallel()
	expired := storedMeeting("expired", "pending", 10*24*time.Hour, 5*24*time.Hour)
	expired.RecipientID = "dave"
	fresh := storedMeeting("fresh", "pending", 72*time.Hour, time.Hour)
	upcomingLate := storedMeeting("upcoming-late", "confirmed", 96*time.Hour, 24*time.Hour)
	upcomingLate.RecipientID = "carol"
	upcomingSoon := storedMeeting("upcoming-soon", "confirmed", 24*time.Hour, 24*time.Hour)
	upcomingSoon.RecipientID = "erin"
	declined := storedMeeting("declined", "declined", 48*time.Hour, 24*time.Hour)
	declined.RecipientID = "frank"
	other := storedMeeting("other", "pending", 72*time.Hour, time.Hour)
	other.RequesterID, other.RecipientID = "x", "y"

	h := newMeetingHarness(t, expired, fresh, upcomingLate, upcomingSoon, declined, other)
	ctx := context.Background()

	all, err := h.service.List(ctx, ListMeetingsParams{Principal: alice()})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	gotIDs := make([]string, 0, len(all))
	for _, summary := range all {
		gotIDs = append(gotIDs, summary.ID)
	}
	want := []string{"fresh", "upcoming-soon", "upcoming-late", "expired", "declined"}
	if len(gotIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotIDs)
		}
	}

	history, err := h.service.List(ctx, ListMeetingsParams{Principal: alice(), View: meeting.ViewHistory})
	if err != nil {
		t.Fatalf("List history returned error: %v", err)
	}
	if len(history) != 2 || history[0].ID != "expired" {
		t.Fatalf("unexpected history %+v", history)
	}
	if history[0].Status != meeting.StatusPending {
		t.Fatalf("expiry must not change the stored status, got %s", history[0].Status)
	}
	if h.repo.get("expired").Status != meeting.StatusPending {
		t.Fatalf("listing must not write")
	}

	upcoming, _ := h.service.List(ctx, ListMeetingsParams{Principal: alice(), View: meeting.ViewUpcoming})
	if !upcoming[0].IceBreakerDue || upcoming[1].IceBreakerDue {
		t.Fatalf("expected ice-breaker flag only inside 48h, got %+v", upcoming)
	}

	awaiting, _ := h.service.List(ctx, ListMeetingsParams{Principal: bob(), View: meeting.ViewAwaiting})
	if len(awaiting) != 1 || !awaiting[0].AwaitingMyResponse || awaiting[0].CounterpartID != "alice" {
		t.Fatalf("unexpected awaiting view for bob %+v", awaiting)
	}
}

func TestMeetingService_CompleteElapsed(t *testing.T) {
	t.Parallel()
	elapsed := storedMeeting("elapsed", "confirmed", -3*time.Hour, 72*time.Hour)
	recent := storedMeeting("recent", "confirmed", -time.Hour, 72*time.Hour)
	recent.RecipientID = "carol"
	pending := storedMeeting("pending", "pending", -5*time.Hour, 72*time.Hour)
	pending.RecipientID = "dave"
	h := newMeetingHarness(t, elapsed, recent, pending)

	count, err := h.service.CompleteElapsed(context.Background())
	if err != nil {
		t.Fatalf("CompleteElapsed returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 completion, got %d", count)
	}
	if h.repo.get("elapsed").Status != meeting.StatusCompleted {
		t.Fatalf("expected elapsed meeting to be completed")
	}
	if h.repo.get("recent").Status != meeting.StatusConfirmed || h.repo.get("pending").Status != meeting.StatusPending {
		t.Fatalf("meetings inside the grace period or not confirmed must not change")
	}
	if h.notifier.count("alice") != 1 || h.notifier.count("bob") != 1 {
		t.Fatalf("expected both participants to be notified, got %+v", h.notifier.events)
	}

	h.now = h.now.Add(2 * time.Hour)
	count, err = h.service.CompleteElapsed(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("expected the recent meeting on the next sweep, got %d %v", count, err)
	}
}

func TestMeetingService_CompleteByParticipant(t *testing.T) {
	t.Parallel()
	h := newMeetingHarness(t, storedMeeting("m1", "confirmed", -30*time.Minute, 72*time.Hour))

	done, err := h.service.Complete(context.Background(), MeetingActionParams{Principal: bob(), MeetingID: "m1"})
	if err != nil || done.Status != meeting.StatusCompleted {
		t.Fatalf("expected completion, got %+v %v", done, err)
	}
}
