package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires handlers into the API. Nil handlers leave their routes
// unregistered, except Calendar which answers 503 when unconfigured.
type RouterConfig struct {
	Availability *AvailabilityHandler
	Suggestions  *SuggestionHandler
	Meetings     *MeetingHandler
	Calendar     *CalendarHandler
	Realtime     *RealtimeHandler
	Health       *HealthHandler
	Verifier     *TokenVerifier
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.MetricsHandler != nil {
		r.Use(Metrics)
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Live)
		r.Get("/readyz", cfg.Health.Ready)
	}

	calendar := cfg.Calendar
	if calendar == nil {
		calendar = NewCalendarHandler(nil, logger)
	}
	r.With(middleware.Timeout(timeout)).Get("/oauth/google/callback", calendar.Callback)

	if cfg.Verifier == nil {
		return r
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireBearer(cfg.Verifier, logger))

		// The websocket outlives the request timeout.
		if cfg.Realtime != nil {
			r.Get("/ws", cfg.Realtime.Stream)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			if h := cfg.Availability; h != nil {
				r.Route("/me/availability", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Put("/", h.Replace)
					r.Put("/days/{day}", h.SetDay)
					r.Post("/overrides", h.AddOverride)
					r.Post("/parse", h.Parse)
					r.Post("/import", h.Import)
				})
			}

			if h := cfg.Suggestions; h != nil {
				r.Get("/users/{userID}/suggestions", h.Suggest)
			}

			if h := cfg.Meetings; h != nil {
				r.Route("/meetings", func(r chi.Router) {
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Route("/{meetingID}", func(r chi.Router) {
						r.Post("/confirm", h.Confirm)
						r.Post("/decline", h.Decline)
						r.Post("/cancel", h.Cancel)
						r.Post("/complete", h.Complete)
						r.Post("/reschedule", h.Reschedule)
					})
				})
			}

			r.Get("/calendar/connect", calendar.Connect)
			r.Delete("/calendar", calendar.Disconnect)
		})
	})

	return r
}
