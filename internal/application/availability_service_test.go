package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
)

func newAvailabilityService(profiles ProfileRepository, busy BusySource) *AvailabilityService {
	return NewAvailabilityService(profiles, busy, AvailabilityServiceConfig{Location: time.UTC}, func() time.Time { return testNow }, nil)
}

func TestAvailabilityService_GetDefaultsForNewUsers(t *testing.T) {
	t.Parallel()
	svc := newAvailabilityService(newProfileRepoStub(), nil)

	model, err := svc.Get(context.Background(), GetAvailabilityParams{Principal: alice()})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !model.Days[time.Monday].Active || model.Days[time.Saturday].Active {
		t.Fatalf("expected weekday default, got %+v", model.Days)
	}

	if _, err := svc.Get(context.Background(), GetAvailabilityParams{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAvailabilityService_GetPropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	repo := newProfileRepoStub()
	repo.getErr = errBoom
	svc := newAvailabilityService(repo, nil)

	if _, err := svc.Get(context.Background(), GetAvailabilityParams{Principal: alice(), UserID: "bob"}); !errors.Is(err, errBoom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestAvailabilityService_SetDay(t *testing.T) {
	t.Parallel()
	repo := newProfileRepoStub()
	svc := newAvailabilityService(repo, nil)
	ctx := context.Background()

	model, err := svc.SetDay(ctx, SetDayParams{
		Principal: alice(),
		Day:       time.Saturday,
		Active:    true,
		Start:     availability.MustTimeOfDay(10, 0),
		End:       availability.MustTimeOfDay(14, 0),
	})
	if err != nil {
		t.Fatalf("SetDay returned error: %v", err)
	}
	if !model.Days[time.Saturday].Active || repo.models["alice"].Days[time.Saturday].End != availability.MustTimeOfDay(14, 0) {
		t.Fatalf("expected saturday to be stored, got %+v", repo.models["alice"].Days[time.Saturday])
	}

	_, err = svc.SetDay(ctx, SetDayParams{Principal: alice(), Day: time.Monday, Active: true, Start: availability.MustTimeOfDay(17, 0), End: availability.MustTimeOfDay(9, 0)})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["monday"] != "start must be before end" {
		t.Fatalf("expected monday range error, got %v", err)
	}
	if repo.saves != 1 {
		t.Fatalf("invalid input must not be saved, saves=%d", repo.saves)
	}
}

func TestAvailabilityService_AddDateOverride(t *testing.T) {
	t.Parallel()
	repo := newProfileRepoStub()
	svc := newAvailabilityService(repo, nil)
	ctx := context.Background()
	today := availability.DateOf(testNow)

	model, err := svc.AddDateOverride(ctx, AddDateOverrideParams{Principal: alice(), Date: today.AddDays(3), Start: availability.MustTimeOfDay(13, 0), End: availability.MustTimeOfDay(15, 0)})
	if err != nil {
		t.Fatalf("AddDateOverride returned error: %v", err)
	}
	if len(model.DateOverrides) != 1 || model.DateOverrides[0].Date != today.AddDays(3) {
		t.Fatalf("unexpected overrides %+v", model.DateOverrides)
	}

	_, err = svc.AddDateOverride(ctx, AddDateOverrideParams{Principal: alice(), Date: today.AddDays(-1), Start: availability.MustTimeOfDay(13, 0), End: availability.MustTimeOfDay(15, 0)})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["date"] != "date is in the past" {
		t.Fatalf("expected past date error, got %v", err)
	}

	// Today itself is allowed.
	if _, err := svc.AddDateOverride(ctx, AddDateOverrideParams{Principal: alice(), Date: today, Start: availability.MustTimeOfDay(13, 0), End: availability.MustTimeOfDay(15, 0)}); err != nil {
		t.Fatalf("expected today to be accepted, got %v", err)
	}
}

func TestAvailabilityService_ReplaceRejectsPastDates(t *testing.T) {
	t.Parallel()
	repo := newProfileRepoStub()
	svc := newAvailabilityService(repo, nil)
	today := availability.DateOf(testNow)
	window := func(d availability.Date) availability.DateSlot {
		return availability.DateSlot{Date: d, Start: availability.MustTimeOfDay(9, 0), End: availability.MustTimeOfDay(10, 0)}
	}

	model := availability.Default()
	model.DateOverrides = []availability.DateSlot{window(today.AddDays(-2)), window(today.AddDays(2))}
	var vErr *ValidationError
	if _, err := svc.Replace(context.Background(), ReplaceAvailabilityParams{Principal: alice(), Model: model}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for a past override, got %v", err)
	}
	if msg := vErr.FieldErrors["date_overrides"]; msg != "date is in the past" {
		t.Fatalf("unexpected field errors %+v", vErr.FieldErrors)
	}
	if _, ok := repo.models["alice"]; ok {
		t.Fatalf("rejected model must not be stored")
	}

	blackout := availability.Default()
	blackout.Blackouts = []availability.Date{today.AddDays(-1)}
	if _, err := svc.Replace(context.Background(), ReplaceAvailabilityParams{Principal: alice(), Model: blackout}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for a past blackout, got %v", err)
	}

	model.DateOverrides = []availability.DateSlot{window(today), window(today.AddDays(2))}
	stored, err := svc.Replace(context.Background(), ReplaceAvailabilityParams{Principal: alice(), Model: model})
	if err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	if len(stored.DateOverrides) != 2 {
		t.Fatalf("expected both overrides kept, got %+v", stored.DateOverrides)
	}

	bad := availability.Default()
	bad.Days[time.Tuesday].End = bad.Days[time.Tuesday].Start
	if _, err := svc.Replace(context.Background(), ReplaceAvailabilityParams{Principal: alice(), Model: bad}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAvailabilityService_GetDropsLapsedDates(t *testing.T) {
	t.Parallel()
	repo := newProfileRepoStub()
	today := availability.DateOf(testNow)
	stored := availability.Default()
	stored.DateOverrides = []availability.DateSlot{
		{Date: today.AddDays(-3), Start: availability.MustTimeOfDay(9, 0), End: availability.MustTimeOfDay(10, 0)},
		{Date: today.AddDays(3), Start: availability.MustTimeOfDay(9, 0), End: availability.MustTimeOfDay(10, 0)},
	}
	stored.Blackouts = []availability.Date{today.AddDays(-1)}
	repo.models["alice"] = stored
	svc := newAvailabilityService(repo, nil)

	got, err := svc.Get(context.Background(), GetAvailabilityParams{Principal: alice()})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(got.DateOverrides) != 1 || got.DateOverrides[0].Date != today.AddDays(3) || len(got.Blackouts) != 0 {
		t.Fatalf("expected lapsed dates dropped, got %+v", got)
	}
	if _, err := svc.Replace(context.Background(), ReplaceAvailabilityParams{Principal: alice(), Model: got}); err != nil {
		t.Fatalf("round trip must be accepted: %v", err)
	}
}

func TestAvailabilityService_ParseText(t *testing.T) {
	t.Parallel()
	repo := newProfileRepoStub()
	svc := newAvailabilityService(repo, nil)
	ctx := context.Background()

	preview, err := svc.ParseText(ctx, ParseTextParams{Principal: alice(), Text: "Monday to Friday 9am-5pm"})
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}
	if !preview.Days[time.Friday].Active || preview.Days[time.Friday].End != availability.MustTimeOfDay(17, 0) {
		t.Fatalf("unexpected parsed model %+v", preview.Days)
	}
	if repo.saves != 0 {
		t.Fatalf("preview must not be saved")
	}

	applied, err := svc.ParseText(ctx, ParseTextParams{Principal: alice(), Text: "weekends 10am-2pm", Apply: true})
	if err != nil {
		t.Fatalf("ParseText apply returned error: %v", err)
	}
	if !applied.Days[time.Sunday].Active || repo.saves != 1 {
		t.Fatalf("expected applied model to be saved, got %+v saves=%d", applied.Days[time.Sunday], repo.saves)
	}

	unchanged, err := svc.ParseText(ctx, ParseTextParams{Principal: alice(), Text: "whenever works"})
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}
	if unchanged.Days != applied.Days {
		t.Fatalf("unrecognised text must return the stored model")
	}
}

func TestAvailabilityService_ImportCalendar(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tuesday := availability.DateOf(testNow).AddDays(1)
	busy := []availability.BusyInterval{{
		Start: tuesday.At(availability.MustTimeOfDay(9, 0), time.UTC),
		End:   tuesday.At(availability.MustTimeOfDay(12, 0), time.UTC),
	}}

	t.Run("busy intervals from the request", func(t *testing.T) {
		t.Parallel()
		repo := newProfileRepoStub()
		svc := newAvailabilityService(repo, nil)

		model, err := svc.ImportCalendar(ctx, ImportCalendarParams{Principal: alice(), Busy: busy})
		if err != nil {
			t.Fatalf("ImportCalendar returned error: %v", err)
		}
		start, end, ok := model.WindowFor(tuesday)
		if !ok || start != availability.MustTimeOfDay(12, 0) || end != availability.MustTimeOfDay(17, 0) {
			t.Fatalf("expected 12:00-17:00 on tuesday, got %s-%s %v", start, end, ok)
		}
		if repo.saves != 1 {
			t.Fatalf("expected imported model to be saved")
		}
	})

	t.Run("busy intervals from the connected calendar", func(t *testing.T) {
		t.Parallel()
		source := &busySourceStub{busy: busy}
		svc := newAvailabilityService(newProfileRepoStub(), source)

		if _, err := svc.ImportCalendar(ctx, ImportCalendarParams{Principal: alice()}); err != nil {
			t.Fatalf("ImportCalendar returned error: %v", err)
		}
		if !source.from.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)) || !source.to.Equal(time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected lookup range %v - %v", source.from, source.to)
		}
	})

	t.Run("no calendar connected", func(t *testing.T) {
		t.Parallel()
		svc := newAvailabilityService(newProfileRepoStub(), nil)
		if _, err := svc.ImportCalendar(ctx, ImportCalendarParams{Principal: alice()}); !errors.Is(err, ErrCalendarNotConnected) {
			t.Fatalf("expected ErrCalendarNotConnected, got %v", err)
		}

		source := &busySourceStub{err: ErrCalendarNotConnected}
		svc = newAvailabilityService(newProfileRepoStub(), source)
		if _, err := svc.ImportCalendar(ctx, ImportCalendarParams{Principal: alice()}); !errors.Is(err, ErrCalendarNotConnected) {
			t.Fatalf("expected ErrCalendarNotConnected, got %v", err)
		}
	})

	t.Run("rejects inverted intervals", func(t *testing.T) {
		t.Parallel()
		svc := newAvailabilityService(newProfileRepoStub(), nil)
		inverted := []availability.BusyInterval{{Start: busy[0].End, End: busy[0].Start}}
		var vErr *ValidationError
		if _, err := svc.ImportCalendar(ctx, ImportCalendarParams{Principal: alice(), Busy: inverted}); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
