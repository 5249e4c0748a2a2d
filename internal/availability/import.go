package availability

import (
	"sort"
	"time"
)

// BusyInterval is a block of time reported as busy by an external calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ImportOptions bounds a calendar import.
type ImportOptions struct {
	Today       Date
	HorizonDays int
	Location    *time.Location
	// MinFree is the shortest free window worth keeping on a busy date.
	MinFree time.Duration
}

const defaultImportHorizon = 14

// ImportFromCalendar derives availability from busy intervals. The weekly
// template is the Monday to Friday 09:00-17:00 default. On each template day
// within the horizon that has busy time, the busy intervals are subtracted
// and the longest remaining free window becomes a date override. A day with
// no free window of at least MinFree becomes a blackout.
func ImportFromCalendar(busy []BusyInterval, opts ImportOptions) Model {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = defaultImportHorizon
	}
	minFree := int(opts.MinFree / time.Minute)
	if minFree <= 0 {
		minFree = 60
	}

	model := Default()
	for i := 0; i < horizon; i++ {
		date := opts.Today.AddDays(i)
		entry := model.Days[date.Weekday()]
		if !entry.Active {
			continue
		}

		blocked := busyMinutes(busy, date, entry.Start, entry.End, loc)
		if len(blocked) == 0 {
			continue
		}

		start, end, ok := longestFree(entry.Start, entry.End, blocked)
		if !ok || int(end-start) < minFree {
			model.Blackouts = append(model.Blackouts, date)
			continue
		}
		model.DateOverrides = append(model.DateOverrides, DateSlot{Date: date, Start: start, End: end})
	}
	return model
}

type minuteSpan struct {
	start, end TimeOfDay
}

// busyMinutes clips busy intervals to the window on date and returns them as
// minute spans sorted by start.
func busyMinutes(busy []BusyInterval, date Date, windowStart, windowEnd TimeOfDay, loc *time.Location) []minuteSpan {
	from := date.At(windowStart, loc)
	to := date.At(windowEnd, loc)

	spans := make([]minuteSpan, 0)
	for _, interval := range busy {
		start := interval.Start.In(loc)
		end := interval.End.In(loc)
		if !end.After(from) || !start.Before(to) {
			continue
		}
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		startMin := windowStart + TimeOfDay(start.Sub(from)/time.Minute)
		endMin := windowStart + TimeOfDay((end.Sub(from)+time.Minute-1)/time.Minute)
		if endMin > windowEnd {
			endMin = windowEnd
		}
		if startMin < endMin {
			spans = append(spans, minuteSpan{start: startMin, end: endMin})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// longestFree returns the earliest longest gap in [start, end) not covered
// by blocked, which must be sorted by start.
func longestFree(start, end TimeOfDay, blocked []minuteSpan) (TimeOfDay, TimeOfDay, bool) {
	var bestStart, bestEnd TimeOfDay
	found := false
	consider := func(s, e TimeOfDay) {
		if e > s && (!found || e-s > bestEnd-bestStart) {
			bestStart, bestEnd, found = s, e, true
		}
	}

	cursor := start
	for _, span := range blocked {
		if span.start > cursor {
			consider(cursor, span.start)
		}
		if span.end > cursor {
			cursor = span.end
		}
	}
	consider(cursor, end)
	return bestStart, bestEnd, found
}
