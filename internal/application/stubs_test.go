package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/persistence"
	"github.com/example/icebreaker-scheduler/internal/ranking"
)

var testNow = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

type profileRepoStub struct {
	mu      sync.Mutex
	models  map[string]availability.Model
	getErr  error
	saveErr error
	saves   int
}

func newProfileRepoStub() *profileRepoStub {
	return &profileRepoStub{models: make(map[string]availability.Model)}
}

func (p *profileRepoStub) GetAvailability(ctx context.Context, userID string) (availability.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return availability.Model{}, p.getErr
	}
	model, ok := p.models[userID]
	if !ok {
		return availability.Model{}, persistence.ErrNotFound
	}
	return model.Clone(), nil
}

func (p *profileRepoStub) SaveAvailability(ctx context.Context, userID string, model availability.Model) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saves++
	p.models[userID] = model.Clone()
	return nil
}

// meetingRepoStub mimics the stores: one pending meeting per pair and
// versioned updates.
type meetingRepoStub struct {
	mu        sync.Mutex
	records   map[string]MeetingRecord
	createErr error
	updateErr error
	listErr   error
	updates   int
}

func newMeetingRepoStub(records ...MeetingRecord) *meetingRepoStub {
	stub := &meetingRepoStub{records: make(map[string]MeetingRecord)}
	for _, record := range records {
		if record.Version == 0 {
			record.Version = 1
		}
		stub.records[record.ID] = record
	}
	return stub
}

func (m *meetingRepoStub) pendingLocked(a, b, exclude string) (MeetingRecord, bool) {
	lowA, highA := meeting.PairKey(a, b)
	for _, record := range m.records {
		if record.ID == exclude || !record.Status.AwaitingResponse() {
			continue
		}
		low, high := meeting.PairKey(record.RequesterID, record.RecipientID)
		if low == lowA && high == highA {
			return record, true
		}
	}
	return MeetingRecord{}, false
}

func (m *meetingRepoStub) CreateMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return MeetingRecord{}, m.createErr
	}
	if _, dup := m.pendingLocked(record.RequesterID, record.RecipientID, ""); dup && record.Status.AwaitingResponse() {
		return MeetingRecord{}, persistence.ErrDuplicate
	}
	record.Version = 1
	m.records[record.ID] = record
	return record, nil
}

func (m *meetingRepoStub) UpdateMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return MeetingRecord{}, m.updateErr
	}
	current, ok := m.records[record.ID]
	if !ok {
		return MeetingRecord{}, persistence.ErrNotFound
	}
	if current.Version != record.Version {
		return MeetingRecord{}, persistence.ErrConflict
	}
	if record.Status.AwaitingResponse() {
		if _, dup := m.pendingLocked(record.RequesterID, record.RecipientID, record.ID); dup {
			return MeetingRecord{}, persistence.ErrDuplicate
		}
	}
	record.Version++
	m.records[record.ID] = record
	m.updates++
	return record, nil
}

func (m *meetingRepoStub) GetMeeting(ctx context.Context, id string) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return MeetingRecord{}, persistence.ErrNotFound
	}
	return record, nil
}

func (m *meetingRepoStub) FindPendingBetween(ctx context.Context, a, b string) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.pendingLocked(a, b, ""); ok {
		return record, nil
	}
	return MeetingRecord{}, persistence.ErrNotFound
}

func (m *meetingRepoStub) ListMeetings(ctx context.Context, filter MeetingRepositoryFilter) ([]MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]MeetingRecord, 0, len(m.records))
	for _, record := range m.records {
		if len(filter.ParticipantIDs) > 0 && !containsAny(filter.ParticipantIDs, record.RequesterID, record.RecipientID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, record.Status) {
			continue
		}
		if filter.ScheduledAfter != nil && !record.ScheduledAt.After(*filter.ScheduledAfter) {
			continue
		}
		if filter.ScheduledBefore != nil && !record.ScheduledAt.Before(*filter.ScheduledBefore) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *meetingRepoStub) get(id string) MeetingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func containsAny(values []string, candidates ...string) bool {
	for _, v := range values {
		for _, c := range candidates {
			if v == c {
				return true
			}
		}
	}
	return false
}

func containsStatus(values []meeting.Status, status meeting.Status) bool {
	for _, v := range values {
		if v == status {
			return true
		}
	}
	return false
}

type notifierStub struct {
	mu     sync.Mutex
	events map[string][]MeetingEvent
	err    error
}

func (n *notifierStub) NotifyMeeting(ctx context.Context, userID string, event MeetingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]MeetingEvent)
	}
	n.events[userID] = append(n.events[userID], event)
	return n.err
}

func (n *notifierStub) count(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events[userID])
}

type calendarStub struct {
	created []meeting.Meeting
	err     error
}

func (c *calendarStub) CreateEvent(ctx context.Context, m meeting.Meeting) error {
	c.created = append(c.created, m)
	return c.err
}

type observerStub struct {
	mu          sync.Mutex
	transitions map[string]int
	sideEffects map[string]int
}

func (o *observerStub) MeetingTransition(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.transitions == nil {
		o.transitions = make(map[string]int)
	}
	o.transitions[action+"/"+outcome]++
}

func (o *observerStub) SideEffectFailed(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sideEffects == nil {
		o.sideEffects = make(map[string]int)
	}
	o.sideEffects[kind]++
}

type busySourceStub struct {
	busy     []availability.BusyInterval
	err      error
	from, to time.Time
}

func (b *busySourceStub) BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]availability.BusyInterval, error) {
	b.from, b.to = from, to
	return b.busy, b.err
}

type rankerStub struct {
	requests []ranking.Request
	result   func(ranking.Request) ranking.Result
}

func (r *rankerStub) Rank(ctx context.Context, req ranking.Request) ranking.Result {
	r.requests = append(r.requests, req)
	if r.result != nil {
		return r.result(req)
	}
	return ranking.Result{Slots: req.Candidates, Mode: ranking.ModeFallback, FallbackReason: ranking.ReasonServiceError}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("meeting-%d", n)
	}
}

var errBoom = errors.New("boom")
