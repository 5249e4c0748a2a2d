package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/ranking"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the time zone slots and availability dates resolve in.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

func (f *ServiceFactory) now(override func() time.Time) func() time.Time {
	if override != nil {
		return override
	}
	return f.Clock.NowFunc()
}

// AvailabilityServiceDeps captures dependencies for constructing an availability service.
type AvailabilityServiceDeps struct {
	Profiles application.ProfileRepository
	Busy     application.BusySource
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewAvailabilityService builds an availability service in the factory's time zone.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	return application.NewAvailabilityService(
		deps.Profiles,
		deps.Busy,
		application.AvailabilityServiceConfig{Location: f.Location},
		f.now(deps.Now),
		deps.Logger,
	)
}

// MeetingServiceDeps captures dependencies for constructing a meeting service.
type MeetingServiceDeps struct {
	Meetings    application.MeetingRepository
	Policy      *meeting.Policy
	Options     []application.MeetingServiceOption
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewMeetingService builds a meeting service with the default lifecycle policy
// unless deps.Policy is set.
func (f *ServiceFactory) NewMeetingService(deps MeetingServiceDeps) *application.MeetingService {
	policy := meeting.DefaultPolicy()
	if deps.Policy != nil {
		policy = *deps.Policy
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	return application.NewMeetingService(
		deps.Meetings,
		application.MeetingServiceConfig{Policy: policy},
		idGen,
		f.now(deps.Now),
		deps.Logger,
		deps.Options...,
	)
}

// SuggestionServiceDeps captures dependencies for constructing a suggestion service.
type SuggestionServiceDeps struct {
	Profiles application.ProfileRepository
	Meetings application.MeetingRepository
	// Ranker defaults to one without a gateway, which always returns the
	// chronological candidates.
	Ranker  application.SlotRanker
	Options slots.Options
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewSuggestionService builds a suggestion service over a slot engine in the
// factory's time zone.
func (f *ServiceFactory) NewSuggestionService(deps SuggestionServiceDeps) *application.SuggestionService {
	ranker := deps.Ranker
	if ranker == nil {
		ranker = ranking.NewRanker(nil, ranking.Options{Logger: deps.Logger})
	}
	return application.NewSuggestionService(
		deps.Profiles,
		deps.Meetings,
		slots.NewEngine(f.Location),
		ranker,
		deps.Options,
		f.now(deps.Now),
		deps.Logger,
	)
}
