// Package calendar connects users' Google calendars for free/busy import and
// event creation.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/meeting"
)

const primaryCalendar = "primary"

// Config configures the Google integration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIEndpoint overrides the Calendar API base URL.
	APIEndpoint string
	// EventDuration is the length of created events. Defaults to one hour.
	EventDuration time.Duration
}

// Enabled reports whether OAuth credentials are configured.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Google implements the OAuth connect flow and the calendar operations.
type Google struct {
	oauth    *oauth2.Config
	states   *StateStore
	tokens   *TokenStore
	endpoint string
	duration time.Duration
	logger   *slog.Logger
}

// NewGoogle creates a Google integration.
func NewGoogle(cfg Config, states *StateStore, tokens *TokenStore, logger *slog.Logger) (*Google, error) {
	if !cfg.Enabled() {
		return nil, errors.New("calendar: google client id, secret and redirect url are required")
	}
	if states == nil || tokens == nil {
		return nil, errors.New("calendar: state and token stores are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	duration := cfg.EventDuration
	if duration <= 0 {
		duration = time.Hour
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarReadonlyScope, gcal.CalendarEventsScope},
		},
		states:   states,
		tokens:   tokens,
		endpoint: cfg.APIEndpoint,
		duration: duration,
		logger:   logger.With("component", "calendar"),
	}, nil
}

// AuthURL returns the consent URL for userID.
func (g *Google) AuthURL(userID string) string {
	state := g.states.Issue(userID)
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange completes the consent flow and stores the token. It returns the
// user the state was issued to.
func (g *Google) Exchange(ctx context.Context, state, code string) (string, error) {
	userID, err := g.states.Consume(state)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(code) == "" {
		return "", errors.New("calendar: authorization code is required")
	}
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if err := g.tokens.Save(ctx, userID, token); err != nil {
		return "", err
	}
	g.logger.InfoContext(ctx, "calendar connected", "user_id", userID)
	return userID, nil
}

// Disconnect forgets the user's calendar token.
func (g *Google) Disconnect(ctx context.Context, userID string) error {
	return g.tokens.Delete(ctx, userID)
}

// BusyIntervals returns the busy blocks on the user's primary calendar
// between from and to.
func (g *Google) BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]availability.BusyInterval, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: primaryCalendar}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[primaryCalendar]
	if !ok {
		return []availability.BusyInterval{}, nil
	}
	intervals := make([]availability.BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", period.End, err)
		}
		intervals = append(intervals, availability.BusyInterval{Start: start, End: end})
	}
	return intervals, nil
}

// CreateEvent adds the meeting to every participant's connected calendar.
// Participants without a calendar are skipped.
func (g *Google) CreateEvent(ctx context.Context, m meeting.Meeting) error {
	event := &gcal.Event{
		Summary:     eventSummary(m),
		Location:    m.Location,
		Description: m.ConnectedInterest,
		Start:       &gcal.EventDateTime{DateTime: m.ScheduledAt.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: m.ScheduledAt.Add(g.duration).Format(time.RFC3339)},
	}

	var errs []error
	for _, userID := range []string{m.RequesterID, m.RecipientID} {
		svc, err := g.service(ctx, userID)
		if errors.Is(err, ErrNotConnected) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if _, err := svc.Events.Insert(primaryCalendar, event).Context(ctx).Do(); err != nil {
			errs = append(errs, fmt.Errorf("insert event for %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Google) service(ctx context.Context, userID string) (*gcal.Service, error) {
	token, err := g.tokens.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	source := &persistingSource{
		ctx:    context.WithoutCancel(ctx),
		userID: userID,
		store:  g.tokens,
		source: g.oauth.TokenSource(ctx, token),
		last:   token.AccessToken,
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, nil
}

func eventSummary(m meeting.Meeting) string {
	if m.MeetingType == "" {
		return "Icebreaker meeting"
	}
	return "Icebreaker " + m.MeetingType
}
