package application

import (
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/ranking"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// MeetingRecord is a stored meeting together with its optimistic concurrency version.
type MeetingRecord struct {
	meeting.Meeting
	Version int64
}

// MeetingSummary is a meeting as presented to one of its participants.
type MeetingSummary struct {
	MeetingRecord
	View meeting.View
	// CounterpartID is the other participant from the viewer's perspective.
	CounterpartID string
	// AwaitingMyResponse is true when the viewer must confirm or decline.
	AwaitingMyResponse bool
	// IceBreakerDue is true for confirmed meetings inside the no-cancel window.
	IceBreakerDue bool
}

// MeetingEvent is published to participants after a lifecycle change.
type MeetingEvent struct {
	Type    string
	Actor   string
	Meeting MeetingRecord
}

// Meeting event types.
const (
	EventMeetingRequested   = "meeting.requested"
	EventMeetingConfirmed   = "meeting.confirmed"
	EventMeetingDeclined    = "meeting.declined"
	EventMeetingCancelled   = "meeting.cancelled"
	EventMeetingRescheduled = "meeting.rescheduled"
	EventMeetingCompleted   = "meeting.completed"
)

// GetAvailabilityParams identifies whose availability to read.
type GetAvailabilityParams struct {
	Principal Principal
	// UserID defaults to the principal.
	UserID string
}

// ReplaceAvailabilityParams replaces the principal's whole model.
type ReplaceAvailabilityParams struct {
	Principal Principal
	Model     availability.Model
}

// SetDayParams updates one weekday entry.
type SetDayParams struct {
	Principal Principal
	Day       time.Weekday
	Active    bool
	Start     availability.TimeOfDay
	End       availability.TimeOfDay
}

// AddDateOverrideParams adds availability for one calendar date.
type AddDateOverrideParams struct {
	Principal Principal
	Date      availability.Date
	Start     availability.TimeOfDay
	End       availability.TimeOfDay
}

// ParseTextParams interprets free text. When Apply is set the result is saved.
type ParseTextParams struct {
	Principal Principal
	Text      string
	Apply     bool
}

// ImportCalendarParams derives availability from busy time. When Busy is
// empty the intervals are pulled from the principal's connected calendar.
type ImportCalendarParams struct {
	Principal Principal
	Busy      []availability.BusyInterval
}

// SuggestParams asks for meeting times between the principal and another user.
type SuggestParams struct {
	Principal   Principal
	RecipientID string
	Preference  string
}

// SuggestionResult is the ranked list of mutual slots.
type SuggestionResult struct {
	Slots          []slots.TimeSlot
	Mode           ranking.Mode
	FallbackReason string
	// NoOverlap is true when the two users share no free time at all.
	NoOverlap bool
}

// RequestMeetingParams proposes a meeting to another user.
type RequestMeetingParams struct {
	Principal         Principal
	RecipientID       string
	ScheduledAt       time.Time
	MeetingType       string
	Location          string
	ConnectedInterest string
}

// MeetingActionParams identifies a meeting acted upon by the principal.
type MeetingActionParams struct {
	Principal Principal
	MeetingID string
}

// ProposeNewTimeParams moves a meeting to a new time.
type ProposeNewTimeParams struct {
	Principal   Principal
	MeetingID   string
	ScheduledAt time.Time
}

// ListMeetingsParams lists the principal's meetings, optionally for one view.
type ListMeetingsParams struct {
	Principal Principal
	View      meeting.View
}
