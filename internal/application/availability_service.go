package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
)

// ProfileRepository captures the availability persistence needed by the services.
type ProfileRepository interface {
	// GetAvailability returns persistence.ErrNotFound for users that never saved one.
	GetAvailability(ctx context.Context, userID string) (availability.Model, error)
	SaveAvailability(ctx context.Context, userID string, model availability.Model) error
}

// BusySource reads busy time from a user's connected external calendar. It
// returns ErrCalendarNotConnected when the user has none.
type BusySource interface {
	BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]availability.BusyInterval, error)
}

// AvailabilityServiceConfig tunes the availability service.
type AvailabilityServiceConfig struct {
	Location      *time.Location
	ImportHorizon int
	// ImportMinFree is the shortest free window kept on a busy day.
	ImportMinFree time.Duration
}

// AvailabilityService reads and edits per-user availability.
type AvailabilityService struct {
	profiles ProfileRepository
	busy     BusySource
	cfg      AvailabilityServiceConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(profiles ProfileRepository, busy BusySource, cfg AvailabilityServiceConfig, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ImportHorizon <= 0 {
		cfg.ImportHorizon = 14
	}
	if cfg.ImportMinFree <= 0 {
		cfg.ImportMinFree = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		profiles: profiles,
		busy:     busy,
		cfg:      cfg,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// Get returns the stored availability, or the weekday default when none is stored.
func (s *AvailabilityService) Get(ctx context.Context, params GetAvailabilityParams) (availability.Model, error) {
	if s == nil {
		return availability.Model{}, fmt.Errorf("AvailabilityService is nil")
	}
	if params.Principal.UserID == "" {
		return availability.Model{}, ErrUnauthorized
	}
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = params.Principal.UserID
	}
	return s.load(ctx, userID)
}

// Replace validates and stores a complete model for the principal. Date
// overrides and blackouts before today are rejected with a validation error,
// as AddDateOverride does. Models read back through Get never carry past
// dates, so a read-modify-write round trip stays valid.
func (s *AvailabilityService) Replace(ctx context.Context, params ReplaceAvailabilityParams) (availability.Model, error) {
	if s == nil {
		return availability.Model{}, fmt.Errorf("AvailabilityService is nil")
	}
	if params.Principal.UserID == "" {
		return availability.Model{}, ErrUnauthorized
	}

	model := params.Model.Clone()
	if err := model.CheckNotBefore(s.today()); err != nil {
		return availability.Model{}, availabilityValidationError("date_overrides", err)
	}
	if err := model.Validate(); err != nil {
		return availability.Model{}, availabilityValidationError("availability", err)
	}
	return s.save(ctx, "Replace", params.Principal.UserID, model)
}

// SetDay changes one recurring weekday window.
func (s *AvailabilityService) SetDay(ctx context.Context, params SetDayParams) (availability.Model, error) {
	if s == nil {
		return availability.Model{}, fmt.Errorf("AvailabilityService is nil")
	}
	if params.Principal.UserID == "" {
		return availability.Model{}, ErrUnauthorized
	}

	model, err := s.load(ctx, params.Principal.UserID)
	if err != nil {
		return availability.Model{}, err
	}
	if err := model.SetDay(params.Day, params.Active, params.Start, params.End); err != nil {
		return availability.Model{}, availabilityValidationError(availability.WeekdayName(params.Day), err)
	}
	return s.save(ctx, "SetDay", params.Principal.UserID, model)
}

// AddDateOverride records availability for one date, replacing the weekday window there.
func (s *AvailabilityService) AddDateOverride(ctx context.Context, params AddDateOverrideParams) (availability.Model, error) {
	if s == nil {
		return availability.Model{}, fmt.Errorf("AvailabilityService is nil")
	}
	if params.Principal.UserID == "" {
		return availability.Model{}, ErrUnauthorized
	}
	if params.Date.IsZero() {
		return availability.Model{}, fieldError("date", "date is required")
	}

	model, err := s.load(ctx, params.Principal.UserID)
	if err != nil {
		return availability.Model{}, err
	}
	if err := model.AddDateOverride(params.Date, s.today(), params.Start, params.End); err != nil {
		return availability.Model{}, availabilityValidationError("date", err)
	}
	return s.save(ctx, "AddDateOverride", params.Principal.UserID, model)
}

// ParseText interprets a free-text description against the stored model.
// Unrecognised text yields the stored model unchanged.
func (s *AvailabilityService) ParseText(ctx context.Context, params ParseTextParams) (availability.Model, error) {
	if s == nil {
		return availability.Model{}, fmt.Errorf("AvailabilityService is nil")
	}
	if params.Principal.UserID == "" {
		return availability.Model{}, ErrUnauthorized
	}

	base, err := s.load(ctx, params.Principal.UserID)
	if err != nil {
		return availability.Model{}, err
	}
	parsed := availability.ParseFromText(params.Text, base)
	if !params.Apply {
		return parsed, nil
	}
	return s.save(ctx, "ParseText", params.Principal.UserID, parsed)
}

// ImportCalendar replaces the principal's availability with one derived from busy time.
func (s *AvailabilityService) ImportCalendar(ctx context.Context, params ImportCalendarParams) (availability.Model, error) {
	if s == nil {
		return availability.Model{}, fmt.Errorf("AvailabilityService is nil")
	}
	if params.Principal.UserID == "" {
		return availability.Model{}, ErrUnauthorized
	}
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "ImportCalendar", "user_id", params.Principal.UserID)

	now := s.now().In(s.cfg.Location)
	today := availability.DateOf(now)
	busy := params.Busy
	if len(busy) == 0 {
		if s.busy == nil {
			return availability.Model{}, ErrCalendarNotConnected
		}
		from := today.At(0, s.cfg.Location)
		to := today.AddDays(s.cfg.ImportHorizon).At(0, s.cfg.Location)
		fetched, err := s.busy.BusyIntervals(ctx, params.Principal.UserID, from, to)
		if err != nil {
			if errors.Is(err, ErrCalendarNotConnected) {
				return availability.Model{}, err
			}
			logger.Error("busy interval lookup failed", "error", err)
			return availability.Model{}, err
		}
		busy = fetched
	}

	vErr := &ValidationError{}
	for i, interval := range busy {
		if !interval.End.After(interval.Start) {
			vErr.add(fmt.Sprintf("busy[%d]", i), "end must be after start")
		}
	}
	if vErr.HasErrors() {
		return availability.Model{}, vErr
	}

	model := availability.ImportFromCalendar(busy, availability.ImportOptions{
		Today:       today,
		HorizonDays: s.cfg.ImportHorizon,
		Location:    s.cfg.Location,
		MinFree:     s.cfg.ImportMinFree,
	})
	logger.Info("calendar imported", "busy_intervals", len(busy), "overrides", len(model.DateOverrides), "blackouts", len(model.Blackouts))
	return s.save(ctx, "ImportCalendar", params.Principal.UserID, model)
}

func (s *AvailabilityService) today() availability.Date {
	return availability.DateOf(s.now().In(s.cfg.Location))
}

func (s *AvailabilityService) load(ctx context.Context, userID string) (availability.Model, error) {
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
	model.PruneBefore(s.today())
	return model, nil
}

func (s *AvailabilityService) save(ctx context.Context, operation, userID string, model availability.Model) (availability.Model, error) {
	if s.profiles == nil {
		return model, nil
	}
	if err := s.profiles.SaveAvailability(ctx, userID, model); err != nil {
		serviceLogger(ctx, s.logger, "AvailabilityService", operation, "user_id", userID).
			Error("failed to save availability", "error", err, "error_kind", ErrorKind(err))
		return availability.Model{}, err
	}
	return model, nil
}

func availabilityValidationError(field string, err error) error {
	vErr := &ValidationError{}
	switch {
	case errors.Is(err, availability.ErrPastDate):
		vErr.add(field, "date is in the past")
	case errors.Is(err, availability.ErrInvalidRange):
		vErr.add(field, "start must be before end")
	default:
		vErr.add(field, err.Error())
	}
	return vErr
}
