package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/calendar"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/persistence"
	"github.com/example/icebreaker-scheduler/internal/realtime"
)

type profileRepositoryAdapter struct {
	repo persistence.ProfileRepository
	now  func() time.Time
}

func newProfileRepositoryAdapter(repo persistence.ProfileRepository, now func() time.Time) *profileRepositoryAdapter {
	if now == nil {
		now = time.Now
	}
	return &profileRepositoryAdapter{repo: repo, now: now}
}

func (a *profileRepositoryAdapter) GetAvailability(ctx context.Context, userID string) (availability.Model, error) {
	profile, err := a.repo.GetProfile(ctx, userID)
	if err != nil {
		return availability.Model{}, err
	}
	return profile.Availability, nil
}

func (a *profileRepositoryAdapter) SaveAvailability(ctx context.Context, userID string, model availability.Model) error {
	return a.repo.SaveProfile(ctx, persistence.Profile{UserID: userID, Availability: model, UpdatedAt: a.now()})
}

type meetingRepositoryAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingRepositoryAdapter(repo persistence.MeetingRepository) *meetingRepositoryAdapter {
	return &meetingRepositoryAdapter{repo: repo}
}

func (a *meetingRepositoryAdapter) CreateMeeting(ctx context.Context, record application.MeetingRecord) (application.MeetingRecord, error) {
	stored, err := a.repo.CreateMeeting(ctx, toPersistenceMeeting(record))
	if err != nil {
		return application.MeetingRecord{}, err
	}
	return toApplicationMeeting(stored)
}

func (a *meetingRepositoryAdapter) UpdateMeeting(ctx context.Context, record application.MeetingRecord) (application.MeetingRecord, error) {
	stored, err := a.repo.UpdateMeeting(ctx, toPersistenceMeeting(record))
	if err != nil {
		return application.MeetingRecord{}, err
	}
	return toApplicationMeeting(stored)
}

func (a *meetingRepositoryAdapter) GetMeeting(ctx context.Context, id string) (application.MeetingRecord, error) {
	stored, err := a.repo.GetMeeting(ctx, id)
	if err != nil {
		return application.MeetingRecord{}, err
	}
	return toApplicationMeeting(stored)
}

func (a *meetingRepositoryAdapter) FindPendingBetween(ctx context.Context, userA, userB string) (application.MeetingRecord, error) {
	stored, err := a.repo.FindPendingBetween(ctx, userA, userB)
	if err != nil {
		return application.MeetingRecord{}, err
	}
	return toApplicationMeeting(stored)
}

func (a *meetingRepositoryAdapter) ListMeetings(ctx context.Context, filter application.MeetingRepositoryFilter) ([]application.MeetingRecord, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	stored, err := a.repo.ListMeetings(ctx, persistence.MeetingFilter{
		ParticipantIDs:  filter.ParticipantIDs,
		Statuses:        statuses,
		ScheduledAfter:  filter.ScheduledAfter,
		ScheduledBefore: filter.ScheduledBefore,
	})
	if err != nil {
		return nil, err
	}
	records := make([]application.MeetingRecord, 0, len(stored))
	for _, m := range stored {
		record, err := toApplicationMeeting(m)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func toApplicationMeeting(m persistence.Meeting) (application.MeetingRecord, error) {
	status, err := meeting.ParseStatus(m.Status)
	if err != nil {
		return application.MeetingRecord{}, fmt.Errorf("meeting %s: %w", m.ID, err)
	}
	return application.MeetingRecord{
		Meeting: meeting.Meeting{
			ID:                m.ID,
			RequesterID:       m.RequesterID,
			RecipientID:       m.RecipientID,
			ProposedBy:        m.ProposedBy,
			ScheduledAt:       m.ScheduledAt,
			Status:            status,
			MeetingType:       m.MeetingType,
			Location:          m.Location,
			ConnectedInterest: m.ConnectedInterest,
			ProposedAt:        m.ProposedAt,
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		},
		Version: m.Version,
	}, nil
}

func toPersistenceMeeting(record application.MeetingRecord) persistence.Meeting {
	return persistence.Meeting{
		ID:                record.ID,
		RequesterID:       record.RequesterID,
		RecipientID:       record.RecipientID,
		ProposedBy:        record.ProposedBy,
		ScheduledAt:       record.ScheduledAt,
		Status:            string(record.Status),
		MeetingType:       record.MeetingType,
		Location:          record.Location,
		ConnectedInterest: record.ConnectedInterest,
		ProposedAt:        record.ProposedAt,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
		Version:           record.Version,
	}
}

type busyReader interface {
	BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]availability.BusyInterval, error)
}

// busySourceAdapter translates a missing calendar connection into the
// application error.
type busySourceAdapter struct {
	reader busyReader
}

func (a *busySourceAdapter) BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]availability.BusyInterval, error) {
	if a == nil || a.reader == nil {
		return nil, application.ErrCalendarNotConnected
	}
	intervals, err := a.reader.BusyIntervals(ctx, userID, from, to)
	if errors.Is(err, calendar.ErrNotConnected) {
		return nil, application.ErrCalendarNotConnected
	}
	return intervals, err
}

type eventPublisher interface {
	Notify(ctx context.Context, userID string, event realtime.Event) error
}

type meetingNotifierAdapter struct {
	publisher eventPublisher
	now       func() time.Time
}

func newMeetingNotifierAdapter(publisher eventPublisher, now func() time.Time) *meetingNotifierAdapter {
	if now == nil {
		now = time.Now
	}
	return &meetingNotifierAdapter{publisher: publisher, now: now}
}

type meetingEventPayload struct {
	MeetingID   string    `json:"meeting_id"`
	Actor       string    `json:"actor"`
	RequesterID string    `json:"requester_id"`
	RecipientID string    `json:"recipient_id"`
	ProposedBy  string    `json:"proposed_by"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	MeetingType string    `json:"meeting_type,omitempty"`
	Location    string    `json:"location,omitempty"`
	Version     int64     `json:"version"`
}

func (a *meetingNotifierAdapter) NotifyMeeting(ctx context.Context, userID string, event application.MeetingEvent) error {
	m := event.Meeting
	return a.publisher.Notify(ctx, userID, realtime.Event{
		Type: event.Type,
		Payload: meetingEventPayload{
			MeetingID:   m.ID,
			Actor:       event.Actor,
			RequesterID: m.RequesterID,
			RecipientID: m.RecipientID,
			ProposedBy:  m.ProposedBy,
			ScheduledAt: m.ScheduledAt,
			Status:      string(m.Status),
			MeetingType: m.MeetingType,
			Location:    m.Location,
			Version:     m.Version,
		},
		OccurredAt: a.now(),
	})
}
