package slots

import (
	"encoding/json"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/recurrence"
)

const (
	// DefaultHorizonDays is the number of calendar days searched, today included.
	DefaultHorizonDays = 14
	// DefaultSlotLength is the width of every generated slot.
	DefaultSlotLength = 60 * time.Minute
	// DefaultMaxSlots caps the number of generated slots.
	DefaultMaxSlots = 20
)

// Options bounds a single overlap computation. Zero fields take defaults.
type Options struct {
	HorizonDays int
	SlotLength  time.Duration
	MaxSlots    int
}

// DefaultOptions returns the 14 day, 60 minute, 20 slot configuration.
func DefaultOptions() Options {
	return Options{
		HorizonDays: DefaultHorizonDays,
		SlotLength:  DefaultSlotLength,
		MaxSlots:    DefaultMaxSlots,
	}
}

func (o Options) withDefaults() Options {
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	if o.SlotLength < time.Minute {
		o.SlotLength = DefaultSlotLength
	}
	if o.MaxSlots <= 0 {
		o.MaxSlots = DefaultMaxSlots
	}
	return o
}

// TimeSlot is a candidate meeting window on a concrete date.
type TimeSlot struct {
	Day       time.Weekday           `json:"-"`
	Date      availability.Date      `json:"date"`
	Start     availability.TimeOfDay `json:"start_time"`
	End       availability.TimeOfDay `json:"end_time"`
	Rationale string                 `json:"reason,omitempty"`
}

// StartAt returns the slot start as an absolute time in loc.
func (s TimeSlot) StartAt(loc *time.Location) time.Time {
	return s.Date.At(s.Start, loc)
}

// EndAt returns the slot end as an absolute time in loc.
func (s TimeSlot) EndAt(loc *time.Location) time.Time {
	return s.Date.At(s.End, loc)
}

// SameWindow reports whether two slots cover the same date and times,
// ignoring the rationale.
func (s TimeSlot) SameWindow(other TimeSlot) bool {
	return s.Date == other.Date && s.Start == other.Start && s.End == other.End
}

type slotJSON struct {
	Day       string                 `json:"day"`
	Date      availability.Date      `json:"date"`
	Start     availability.TimeOfDay `json:"start_time"`
	End       availability.TimeOfDay `json:"end_time"`
	Rationale string                 `json:"reason,omitempty"`
}

// MarshalJSON adds the weekday label to the encoded slot.
func (s TimeSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{
		Day:       s.Date.Weekday().String(),
		Date:      s.Date,
		Start:     s.Start,
		End:       s.End,
		Rationale: s.Rationale,
	})
}

// UnmarshalJSON derives the weekday from the date rather than trusting the label.
func (s *TimeSlot) UnmarshalJSON(data []byte) error {
	var payload slotJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*s = TimeSlot{
		Day:       payload.Date.Weekday(),
		Date:      payload.Date,
		Start:     payload.Start,
		End:       payload.End,
		Rationale: payload.Rationale,
	}
	return nil
}

// Engine computes mutual availability between two users.
type Engine struct {
	expander *recurrence.Engine
}

// NewEngine constructs an Engine resolving wall-clock times in loc.
func NewEngine(loc *time.Location) *Engine {
	return &Engine{expander: recurrence.NewEngine(loc)}
}

// Location returns the time zone slot instants are resolved in.
func (e *Engine) Location() *time.Location {
	return e.expander.Location()
}

// ComputeOverlap returns the chronological, future-only, non-overlapping
// slots during which both a and b are available within the horizon that
// starts today. An empty result means there is no mutual availability.
//
// For each date the effective windows of both models are intersected and
// split into consecutive SlotLength slots from the overlap start. A trailing
// remainder shorter than SlotLength is dropped. Slots whose start is not
// strictly after now are skipped. Generation stops at MaxSlots.
func (e *Engine) ComputeOverlap(a, b availability.Model, now time.Time, opts Options) []TimeSlot {
	opts = opts.withDefaults()
	loc := e.Location()
	today := e.expander.Today(now)
	length := availability.TimeOfDay(opts.SlotLength / time.Minute)

	windowsA, err := e.expander.Expand(a, today, opts.HorizonDays)
	if err != nil {
		return []TimeSlot{}
	}
	windowsB, err := e.expander.Expand(b, today, opts.HorizonDays)
	if err != nil {
		return []TimeSlot{}
	}

	result := make([]TimeSlot, 0, opts.MaxSlots)
	i, j := 0, 0
	for i < len(windowsA) && j < len(windowsB) {
		wa, wb := windowsA[i], windowsB[j]
		switch {
		case wa.Date.Before(wb.Date):
			i++
			continue
		case wb.Date.Before(wa.Date):
			j++
			continue
		}
		i++
		j++

		start := max(wa.Start, wb.Start)
		end := min(wa.End, wb.End)
		for cursor := start; cursor+length <= end; cursor += length {
			slot := TimeSlot{
				Day:   wa.Date.Weekday(),
				Date:  wa.Date,
				Start: cursor,
				End:   cursor + length,
			}
			if !slot.StartAt(loc).After(now) {
				continue
			}
			result = append(result, slot)
			if len(result) == opts.MaxSlots {
				return result
			}
		}
	}
	return result
}
