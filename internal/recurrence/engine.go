package recurrence

import (
	"errors"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
)

// Window is the effective availability of one user on one calendar date.
type Window struct {
	Date  availability.Date
	Start availability.TimeOfDay
	End   availability.TimeOfDay
}

// Weekday returns the weekday of the window's date.
func (w Window) Weekday() time.Weekday {
	return w.Date.Weekday()
}

// Engine expands weekly availability templates into dated windows.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that resolves dates in the provided location.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ErrInvalidHorizon indicates the expansion window is empty.
var ErrInvalidHorizon = errors.New("recurrence: horizon must be at least one day")

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Today returns the calendar date of now in the engine's location.
func (e *Engine) Today(now time.Time) availability.Date {
	return availability.DateOf(now.In(e.Location()))
}

// Expand walks days calendar days starting at from (inclusive) and returns
// one window per date on which the model has availability.
//
// The engine enforces the following semantics:
//   - A blackout date yields no window.
//   - A date override fully replaces the weekday entry for its date.
//   - Inactive weekdays yield no window.
func (e *Engine) Expand(model availability.Model, from availability.Date, days int) ([]Window, error) {
	if days <= 0 {
		return nil, ErrInvalidHorizon
	}

	windows := make([]Window, 0, days)
	for i := 0; i < days; i++ {
		date := from.AddDays(i)
		start, end, ok := model.WindowFor(date)
		if !ok || start >= end {
			continue
		}
		windows = append(windows, Window{Date: date, Start: start, End: end})
	}
	return windows, nil
}

// Instants converts a window to absolute times in the engine's location.
func (e *Engine) Instants(w Window) (time.Time, time.Time) {
	loc := e.Location()
	return w.Date.At(w.Start, loc), w.Date.At(w.End, loc)
}
