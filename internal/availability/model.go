package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidRange is returned when a window does not start before it ends.
	ErrInvalidRange = errors.New("availability: start must be before end")
	// ErrPastDate is returned when a date-specific entry lies before today.
	ErrPastDate = errors.New("availability: date is in the past")
)

// DayAvailability is the recurring window for one weekday.
type DayAvailability struct {
	Active bool      `json:"active"`
	Start  TimeOfDay `json:"start"`
	End    TimeOfDay `json:"end"`
}

// DateSlot is availability tied to a specific calendar date. It fully
// replaces the weekday window for that date.
type DateSlot struct {
	Date  Date      `json:"date"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Model is a user's recurring weekly availability plus date-specific
// exceptions. Days is indexed by time.Weekday.
type Model struct {
	Days          [7]DayAvailability
	DateOverrides []DateSlot
	// Blackouts are dates on which the user is unavailable regardless of the
	// weekday entry.
	Blackouts []Date
}

var (
	defaultStart = MustTimeOfDay(9, 0)
	defaultEnd   = MustTimeOfDay(17, 0)
)

// Default returns the Monday to Friday 09:00-17:00 template.
func Default() Model {
	var m Model
	for day := time.Sunday; day <= time.Saturday; day++ {
		m.Days[day] = DayAvailability{Start: defaultStart, End: defaultEnd}
		if day != time.Saturday && day != time.Sunday {
			m.Days[day].Active = true
		}
	}
	return m
}

// Clone returns a deep copy of m.
func (m Model) Clone() Model {
	clone := Model{Days: m.Days}
	if len(m.DateOverrides) > 0 {
		clone.DateOverrides = append([]DateSlot(nil), m.DateOverrides...)
	}
	if len(m.Blackouts) > 0 {
		clone.Blackouts = append([]Date(nil), m.Blackouts...)
	}
	return clone
}

// SetDay replaces the recurring window for day.
func (m *Model) SetDay(day time.Weekday, active bool, start, end TimeOfDay) error {
	if day < time.Sunday || day > time.Saturday {
		return fmt.Errorf("availability: unknown weekday %d", int(day))
	}
	if err := checkRange(start, end); err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(day.String()), err)
	}
	m.Days[day] = DayAvailability{Active: active, Start: start, End: end}
	return nil
}

// AddDateOverride records availability for a single calendar date. An
// existing override or blackout on the same date is replaced.
func (m *Model) AddDateOverride(date, today Date, start, end TimeOfDay) error {
	if date.Before(today) {
		return fmt.Errorf("%s: %w", date, ErrPastDate)
	}
	if err := checkRange(start, end); err != nil {
		return fmt.Errorf("%s: %w", date, err)
	}
	m.RemoveDateOverride(date)
	m.removeBlackout(date)
	m.DateOverrides = append(m.DateOverrides, DateSlot{Date: date, Start: start, End: end})
	sort.SliceStable(m.DateOverrides, func(i, j int) bool {
		return m.DateOverrides[i].Date.Before(m.DateOverrides[j].Date)
	})
	return nil
}

// AddBlackout marks date as unavailable, replacing any override for it.
func (m *Model) AddBlackout(date, today Date) error {
	if date.Before(today) {
		return fmt.Errorf("%s: %w", date, ErrPastDate)
	}
	m.RemoveDateOverride(date)
	m.removeBlackout(date)
	m.Blackouts = append(m.Blackouts, date)
	sort.SliceStable(m.Blackouts, func(i, j int) bool { return m.Blackouts[i].Before(m.Blackouts[j]) })
	return nil
}

// RemoveDateOverride drops the override for date, if any.
func (m *Model) RemoveDateOverride(date Date) {
	kept := m.DateOverrides[:0]
	for _, slot := range m.DateOverrides {
		if slot.Date != date {
			kept = append(kept, slot)
		}
	}
	m.DateOverrides = kept
}

func (m *Model) removeBlackout(date Date) {
	kept := m.Blackouts[:0]
	for _, d := range m.Blackouts {
		if d != date {
			kept = append(kept, d)
		}
	}
	m.Blackouts = kept
}

// PruneBefore drops overrides and blackouts dated before today.
func (m *Model) PruneBefore(today Date) {
	overrides := make([]DateSlot, 0, len(m.DateOverrides))
	for _, slot := range m.DateOverrides {
		if !slot.Date.Before(today) {
			overrides = append(overrides, slot)
		}
	}
	m.DateOverrides = overrides

	blackouts := make([]Date, 0, len(m.Blackouts))
	for _, d := range m.Blackouts {
		if !d.Before(today) {
			blackouts = append(blackouts, d)
		}
	}
	m.Blackouts = blackouts
}

// CheckNotBefore returns ErrPastDate for the first override or blackout
// dated before today.
func (m Model) CheckNotBefore(today Date) error {
	for _, slot := range m.DateOverrides {
		if slot.Date.Before(today) {
			return fmt.Errorf("%s: %w", slot.Date, ErrPastDate)
		}
	}
	for _, d := range m.Blackouts {
		if d.Before(today) {
			return fmt.Errorf("%s: %w", d, ErrPastDate)
		}
	}
	return nil
}

// WindowFor returns the effective window on date. Blackouts win over date
// overrides, which win over the weekday entry.
func (m Model) WindowFor(date Date) (TimeOfDay, TimeOfDay, bool) {
	for _, d := range m.Blackouts {
		if d == date {
			return 0, 0, false
		}
	}
	for _, slot := range m.DateOverrides {
		if slot.Date == date {
			return slot.Start, slot.End, true
		}
	}
	day := m.Days[date.Weekday()]
	if !day.Active {
		return 0, 0, false
	}
	return day.Start, day.End, true
}

// ActiveDays lists the weekdays marked active, Sunday first.
func (m Model) ActiveDays() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if m.Days[day].Active {
			days = append(days, day)
		}
	}
	return days
}

// Validate checks every active day and date override.
func (m Model) Validate() error {
	var problems []error
	for day := time.Sunday; day <= time.Saturday; day++ {
		entry := m.Days[day]
		if !entry.Active {
			continue
		}
		if err := checkRange(entry.Start, entry.End); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", strings.ToLower(day.String()), err))
		}
	}
	seen := make(map[Date]struct{}, len(m.DateOverrides))
	for _, slot := range m.DateOverrides {
		if err := checkRange(slot.Start, slot.End); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", slot.Date, err))
		}
		if _, dup := seen[slot.Date]; dup {
			problems = append(problems, fmt.Errorf("availability: duplicate override for %s", slot.Date))
		}
		seen[slot.Date] = struct{}{}
	}
	return errors.Join(problems...)
}

func checkRange(start, end TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("availability: time out of range")
	}
	if start >= end {
		return ErrInvalidRange
	}
	return nil
}

// WeekdayName returns the lower-case JSON key used for day.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// ParseWeekday accepts full English weekday names in any case.
func ParseWeekday(value string) (time.Weekday, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if WeekdayName(day) == value {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("availability: unknown weekday %q", value)
}

type modelJSON struct {
	Days          map[string]DayAvailability `json:"days"`
	DateOverrides []DateSlot                 `json:"date_overrides"`
	Blackouts     []Date                     `json:"blackouts,omitempty"`
}

// MarshalJSON encodes days keyed by lower-case weekday name.
func (m Model) MarshalJSON() ([]byte, error) {
	payload := modelJSON{
		Days:          make(map[string]DayAvailability, 7),
		DateOverrides: m.DateOverrides,
		Blackouts:     m.Blackouts,
	}
	if payload.DateOverrides == nil {
		payload.DateOverrides = []DateSlot{}
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		payload.Days[WeekdayName(day)] = m.Days[day]
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the form produced by MarshalJSON. Missing weekdays
// are left inactive.
func (m *Model) UnmarshalJSON(data []byte) error {
	var payload modelJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	decoded := Model{
		DateOverrides: payload.DateOverrides,
		Blackouts:     payload.Blackouts,
	}
	for name, entry := range payload.Days {
		day, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		decoded.Days[day] = entry
	}
	*m = decoded
	return nil
}
