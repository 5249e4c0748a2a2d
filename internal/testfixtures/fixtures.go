package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/persistence"
)

var meetingCounter uint64

// referenceTime is a Monday morning so weekday fixtures land on predictable dates.
var referenceTime = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ------------------------- Availability fixtures -------------------------

// WeekdayWindow is one active weekday entry written as HH:MM strings.
type WeekdayWindow struct {
	Day   time.Weekday
	Start string
	End   string
}

// Availability builds a model from the supplied weekday windows. It panics on
// malformed input because fixtures are static test data.
func Availability(windows ...WeekdayWindow) availability.Model {
	var model availability.Model
	for _, w := range windows {
		start, err := availability.ParseTimeOfDay(w.Start)
		if err != nil {
			panic(fmt.Sprintf("testfixtures: start %q: %v", w.Start, err))
		}
		end, err := availability.ParseTimeOfDay(w.End)
		if err != nil {
			panic(fmt.Sprintf("testfixtures: end %q: %v", w.End, err))
		}
		if err := model.SetDay(w.Day, true, start, end); err != nil {
			panic(fmt.Sprintf("testfixtures: %s: %v", w.Day, err))
		}
	}
	return model
}

// WorkWeek returns Monday through Friday, 09:00 to 17:00.
func WorkWeek() availability.Model {
	windows := make([]WeekdayWindow, 0, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		windows = append(windows, WeekdayWindow{Day: day, Start: "09:00", End: "17:00"})
	}
	return Availability(windows...)
}

// ProfileFixture returns a stored profile for userID.
func ProfileFixture(userID string, model availability.Model) persistence.Profile {
	return persistence.Profile{UserID: userID, Availability: model, UpdatedAt: referenceTime}
}

// ---------------------------- Meeting fixtures ----------------------------

// MeetingFixture represents a deterministic meeting between two users.
type MeetingFixture struct {
	ID                string
	RequesterID       string
	RecipientID       string
	ProposedBy        string
	ScheduledAt       time.Time
	Status            meeting.Status
	MeetingType       string
	Location          string
	ConnectedInterest string
	ProposedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*MeetingFixture)

// NewMeetingFixture returns a pending coffee meeting three days after
// ReferenceTime, proposed by the requester.
func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	fixture := MeetingFixture{
		ID:          fmt.Sprintf("meeting-%03d", idx),
		RequesterID: "alice",
		RecipientID: "bob",
		ScheduledAt: referenceTime.Add(72 * time.Hour),
		Status:      meeting.StatusPending,
		MeetingType: "coffee",
		Location:    "Student Union",
		ProposedAt:  referenceTime,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	if fixture.ProposedBy == "" {
		fixture.ProposedBy = fixture.RequesterID
	}
	return fixture
}

// WithMeetingID overrides the identifier.
func WithMeetingID(id string) MeetingOption {
	return func(f *MeetingFixture) { f.ID = id }
}

// WithParticipants sets the requester and recipient.
func WithParticipants(requester, recipient string) MeetingOption {
	return func(f *MeetingFixture) {
		f.RequesterID = requester
		f.RecipientID = recipient
	}
}

// WithProposedBy records which participant proposed the current time.
func WithProposedBy(userID string) MeetingOption {
	return func(f *MeetingFixture) { f.ProposedBy = userID }
}

// WithStatus sets the stored status.
func WithStatus(status meeting.Status) MeetingOption {
	return func(f *MeetingFixture) { f.Status = status }
}

// WithScheduledAt sets the meeting start.
func WithScheduledAt(at time.Time) MeetingOption {
	return func(f *MeetingFixture) { f.ScheduledAt = at }
}

// WithProposedAt sets when the current time was proposed, which drives expiry.
func WithProposedAt(at time.Time) MeetingOption {
	return func(f *MeetingFixture) { f.ProposedAt = at }
}

// WithVersion sets the optimistic concurrency version.
func WithVersion(version int64) MeetingOption {
	return func(f *MeetingFixture) { f.Version = version }
}

// Domain returns the fixture as a lifecycle meeting.
func (f MeetingFixture) Domain() meeting.Meeting {
	return meeting.Meeting{
		ID:                f.ID,
		RequesterID:       f.RequesterID,
		RecipientID:       f.RecipientID,
		ProposedBy:        f.ProposedBy,
		ScheduledAt:       f.ScheduledAt,
		Status:            f.Status,
		MeetingType:       f.MeetingType,
		Location:          f.Location,
		ConnectedInterest: f.ConnectedInterest,
		ProposedAt:        f.ProposedAt,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// Record returns the fixture as an application meeting record.
func (f MeetingFixture) Record() application.MeetingRecord {
	return application.MeetingRecord{Meeting: f.Domain(), Version: f.Version}
}

// Persistence returns the fixture as a stored meeting.
func (f MeetingFixture) Persistence() persistence.Meeting {
	return persistence.Meeting{
		ID:                f.ID,
		RequesterID:       f.RequesterID,
		RecipientID:       f.RecipientID,
		ProposedBy:        f.ProposedBy,
		ScheduledAt:       f.ScheduledAt,
		Status:            string(f.Status),
		MeetingType:       f.MeetingType,
		Location:          f.Location,
		ConnectedInterest: f.ConnectedInterest,
		ProposedAt:        f.ProposedAt,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
		Version:           f.Version,
	}
}
