package availability

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseFromText interprets a free-text description of weekly availability.
//
// It is a best-effort keyword heuristic, not a language parser. It
// understands weekday names and abbreviations, day ranges ("monday to
// friday", "mon-thu"), the keywords weekday(s), weekend(s), daily and
// "every day", explicit time ranges with optional am/pm ("9am-5pm",
// "9:30 - 17:00", "1-5pm") and the coarse periods morning, afternoon and
// evening. Clauses are separated by semicolons, full stops or newlines.
//
// The first clause naming days replaces the weekly template: days not
// mentioned anywhere become inactive. Date overrides are kept. When no day
// or time token is found the base model is returned unchanged.
func ParseFromText(text string, base Model) Model {
	normalized := normalizeText(text)
	if normalized == "" {
		return base
	}

	result := base.Clone()
	changed := false
	reset := false
	var lastDays []time.Weekday
	var lastStart, lastEnd TimeOfDay
	haveTime := false

	for _, clause := range clauseSplitter.Split(normalized, -1) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		days := parseDays(clause)
		start, end, timeOK := parseTimeRange(clause)
		if len(days) == 0 && !timeOK {
			continue
		}

		if len(days) > 0 && !reset {
			for day := range result.Days {
				result.Days[day].Active = false
			}
			reset = true
		}

		if len(days) == 0 {
			days = lastDays
		}
		if len(days) == 0 {
			days = result.ActiveDays()
		}
		if len(days) == 0 {
			days = weekdays()
		}

		if timeOK {
			lastStart, lastEnd, haveTime = start, end, true
		}

		for _, day := range days {
			entry := result.Days[day]
			switch {
			case timeOK:
				entry.Start, entry.End = start, end
			case haveTime:
				entry.Start, entry.End = lastStart, lastEnd
			case checkRange(entry.Start, entry.End) != nil:
				entry.Start, entry.End = defaultStart, defaultEnd
			}
			entry.Active = true
			result.Days[day] = entry
		}
		lastDays = days
		changed = true
	}

	if !changed {
		return base
	}
	return result
}

var (
	clauseSplitter = regexp.MustCompile(`[;\n]+|\.\s+|\.$`)
	noonRe         = regexp.MustCompile(`\bnoon\b`)

	dayAlternation = `monday|mon|tuesday|tues|tue|wednesday|weds|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun`
	dayRangeRe     = regexp.MustCompile(`\b(` + dayAlternation + `)s?\s*(?:-|–|—|to|through|thru|till|until)\s*(` + dayAlternation + `)s?\b`)
	dayRe          = regexp.MustCompile(`\b(` + dayAlternation + `)s?\b`)

	timeRangeRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|–|—|to|until|till)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
)

var dayAliases = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tues": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "weds": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thurs": time.Thursday, "thur": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var periodWindows = []struct {
	keyword    string
	start, end TimeOfDay
}{
	{"morning", MustTimeOfDay(9, 0), MustTimeOfDay(12, 0)},
	{"afternoon", MustTimeOfDay(12, 0), MustTimeOfDay(17, 0)},
	{"evening", MustTimeOfDay(17, 0), MustTimeOfDay(21, 0)},
}

func normalizeText(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	replacer := strings.NewReplacer(
		"a.m.", "am",
		"p.m.", "pm",
		"every day", "daily",
		"everyday", "daily",
		"week days", "weekdays",
		"week-days", "weekdays",
		"week ends", "weekends",
		"week-ends", "weekends",
	)
	return noonRe.ReplaceAllString(replacer.Replace(lower), "12pm")
}

func weekdays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

func parseDays(clause string) []time.Weekday {
	var set [7]bool
	found := false
	mark := func(day time.Weekday) {
		set[day] = true
		found = true
	}

	for _, word := range strings.FieldsFunc(clause, func(r rune) bool { return r < 'a' || r > 'z' }) {
		switch word {
		case "weekday", "weekdays":
			for _, day := range weekdays() {
				mark(day)
			}
		case "weekend", "weekends":
			mark(time.Saturday)
			mark(time.Sunday)
		case "daily":
			for day := time.Sunday; day <= time.Saturday; day++ {
				mark(day)
			}
		}
	}

	remaining := dayRangeRe.ReplaceAllStringFunc(clause, func(match string) string {
		parts := dayRangeRe.FindStringSubmatch(match)
		from, to := dayAliases[parts[1]], dayAliases[parts[2]]
		for day := from; ; day = (day + 1) % 7 {
			mark(day)
			if day == to {
				break
			}
		}
		return " "
	})

	for _, match := range dayRe.FindAllStringSubmatch(remaining, -1) {
		mark(dayAliases[match[1]])
	}

	if !found {
		return nil
	}
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	days := make([]time.Weekday, 0, 7)
	for _, day := range order {
		if set[day] {
			days = append(days, day)
		}
	}
	return days
}

func parseTimeRange(clause string) (TimeOfDay, TimeOfDay, bool) {
	if parts := timeRangeRe.FindStringSubmatch(clause); parts != nil {
		if start, end, ok := resolveRange(parts); ok {
			return start, end, true
		}
	}
	for _, period := range periodWindows {
		if strings.Contains(clause, period.keyword) {
			return period.start, period.end, true
		}
	}
	return 0, 0, false
}

func resolveRange(parts []string) (TimeOfDay, TimeOfDay, bool) {
	sh, _ := strconv.Atoi(parts[1])
	sm := atoiDefault(parts[2])
	startMer := parts[3]
	eh, _ := strconv.Atoi(parts[4])
	em := atoiDefault(parts[5])
	endMer := parts[6]

	if startMer != "" && sh > 12 || endMer != "" && eh > 12 {
		return 0, 0, false
	}

	eh = applyMeridiem(eh, endMer)
	switch {
	case startMer != "":
		sh = applyMeridiem(sh, startMer)
	case endMer == "pm":
		if sh < 12 && (sh+12)*60+sm < eh*60+em {
			sh += 12
		}
	case endMer == "":
		// Bare small hours are read as afternoon ("1-3" means 13:00-15:00).
		if sh >= 1 && sh <= 7 {
			sh += 12
		}
	}
	if endMer == "" && eh < 12 && (eh >= 1 && eh <= 7 || eh*60+em <= sh*60+sm) {
		eh += 12
	}

	start, err := NewTimeOfDay(sh, sm)
	if err != nil {
		return 0, 0, false
	}
	end, err := NewTimeOfDay(eh, em)
	if err != nil {
		return 0, 0, false
	}
	if start >= end {
		return 0, 0, false
	}
	return start, end, true
}

func applyMeridiem(hour int, meridiem string) int {
	switch meridiem {
	case "am":
		if hour == 12 {
			return 0
		}
	case "pm":
		if hour < 12 {
			return hour + 12
		}
	}
	return hour
}

func atoiDefault(value string) int {
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
