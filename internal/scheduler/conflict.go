package scheduler

import (
	"sort"
	"time"

	"github.com/example/icebreaker-scheduler/internal/slots"
)

// Schedule is a block of time already committed by one or more participants,
// such as a pending or confirmed meeting.
type Schedule struct {
	ID           string
	Participants []string
	Start        time.Time
	End          time.Time
}

// ConflictType describes the type of conflict detected between schedules.
type ConflictType string

const (
	// ConflictTypeParticipant indicates a participant is double-booked.
	ConflictTypeParticipant ConflictType = "participant"
)

// Conflict details an overlapping schedule relation that callers can present to users.
type Conflict struct {
	WithScheduleID string
	Type           ConflictType
	Participant    string
}

// DetectConflicts identifies conflicts for the candidate schedule against
// existing ones. Schedules that merely touch end to start do not conflict.
// Results are ordered by schedule ID, then participant.
func DetectConflicts(existing []Schedule, candidate Schedule) []Conflict {
	if !candidate.End.After(candidate.Start) {
		return nil
	}

	wanted := make(map[string]struct{}, len(candidate.Participants))
	for _, p := range candidate.Participants {
		wanted[p] = struct{}{}
	}

	conflicts := make([]Conflict, 0)
	for _, s := range existing {
		if s.ID != "" && s.ID == candidate.ID {
			continue
		}
		if !overlaps(s.Start, s.End, candidate.Start, candidate.End) {
			continue
		}
		seen := make(map[string]struct{}, len(s.Participants))
		for _, p := range s.Participants {
			if _, ok := wanted[p]; !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			conflicts = append(conflicts, Conflict{
				WithScheduleID: s.ID,
				Type:           ConflictTypeParticipant,
				Participant:    p,
			})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].WithScheduleID != conflicts[j].WithScheduleID {
			return conflicts[i].WithScheduleID < conflicts[j].WithScheduleID
		}
		return conflicts[i].Participant < conflicts[j].Participant
	})
	return conflicts
}

// FilterAvailable drops candidate slots that would double-book any of the
// participants against existing schedules. Order is preserved.
func FilterAvailable(candidates []slots.TimeSlot, existing []Schedule, participants []string, loc *time.Location) []slots.TimeSlot {
	if len(existing) == 0 {
		return candidates
	}

	kept := make([]slots.TimeSlot, 0, len(candidates))
	for _, slot := range candidates {
		candidate := Schedule{
			Participants: participants,
			Start:        slot.StartAt(loc),
			End:          slot.EndAt(loc),
		}
		if len(DetectConflicts(existing, candidate)) == 0 {
			kept = append(kept, slot)
		}
	}
	return kept
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
