package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/calendar"
	"github.com/example/icebreaker-scheduler/internal/config"
	httptransport "github.com/example/icebreaker-scheduler/internal/http"
	"github.com/example/icebreaker-scheduler/internal/llm"
	"github.com/example/icebreaker-scheduler/internal/meeting"
	"github.com/example/icebreaker-scheduler/internal/metrics"
	"github.com/example/icebreaker-scheduler/internal/persistence"
	"github.com/example/icebreaker-scheduler/internal/persistence/postgres"
	"github.com/example/icebreaker-scheduler/internal/persistence/sqlite"
	"github.com/example/icebreaker-scheduler/internal/ranking"
	"github.com/example/icebreaker-scheduler/internal/realtime"
	"github.com/example/icebreaker-scheduler/internal/slots"
	"github.com/example/icebreaker-scheduler/internal/sweeper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stdout, cfg.Log.Level)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("icebreaker scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	go a.sweeper.Start(ctx)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("icebreaker API listening", "addr", server.Addr, "store", cfg.Store.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	a.sweeper.Stop()
	return nil
}

// migratingStore is a persistence.Store that owns its schema.
type migratingStore interface {
	persistence.Store
	Migrate(ctx context.Context) error
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (migratingStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		storage, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    16,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
		}, logger)
		if err != nil {
			return nil, err
		}
		return storage, nil
	case "", "sqlite":
		storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type app struct {
	handler http.Handler
	sweeper *sweeper.Sweeper
	hub     *realtime.Hub
	closers []func() error
	logger  *slog.Logger
}

func (a *app) close() {
	a.hub.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
}

// newApp opens the store, applies migrations and wires every component.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone: %w", err)
	}
	now := time.Now
	idGenerator := uuid.NewString

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{logger: logger, closers: []func() error{store.Close}}
	fail := func(err error) (*app, error) {
		for i := len(a.closers) - 1; i >= 0; i-- {
			_ = a.closers[i]()
		}
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return fail(fmt.Errorf("apply migrations: %w", err))
	}

	var observer interface {
		ranking.Observer
		application.TransitionObserver
	}
	if cfg.Metrics.Enabled {
		metrics.Register()
		observer = metrics.Observer{}
	}

	checks := map[string]httptransport.Pinger{"store": store}

	var cache ranking.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, client.Close)
		redisCache := ranking.NewRedisCache(client, cfg.Redis.TTL)
		cache = redisCache
		checks["redis"] = redisCache
	} else {
		cache = application.NewSuggestionCache(cfg.Redis.TTL, 512, now)
	}

	var gateway ranking.Gateway
	if cfg.LLM.BaseURL != "" {
		client, err := llm.NewClient(llm.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			HTTPClient: &http.Client{Timeout: cfg.LLM.Timeout + 5*time.Second},
		})
		if err != nil {
			return fail(fmt.Errorf("llm client: %w", err))
		}
		gateway = client
	} else {
		logger.Warn("no LLM endpoint configured, suggestions use chronological order")
	}
	rankerOpts := ranking.Options{
		Timeout:  cfg.LLM.Timeout,
		MaxSlots: cfg.Slots.MaxSlots,
		Limiter:  newLimiter(cfg.LLM.RequestsPerMinute),
		Cache:    cache,
		Logger:   logger,
	}
	if observer != nil {
		rankerOpts.Observer = observer
	}
	ranker := ranking.NewRanker(gateway, rankerOpts)

	var google *calendar.Google
	if cfg.Google.Enabled() {
		sealer, err := calendar.NewSealer(cfg.Google.TokenKey)
		if err != nil {
			return fail(fmt.Errorf("calendar token key: %w", err))
		}
		google, err = calendar.NewGoogle(
			calendar.Config{ClientID: cfg.Google.ClientID, ClientSecret: cfg.Google.ClientSecret, RedirectURL: cfg.Google.RedirectURL},
			calendar.NewStateStore(0, now),
			calendar.NewTokenStore(store, sealer, now),
			logger,
		)
		if err != nil {
			return fail(fmt.Errorf("google calendar: %w", err))
		}
	}

	a.hub = realtime.NewHub(realtime.DefaultBuffer, logger)
	profiles := newProfileRepositoryAdapter(store, now)
	meetings := newMeetingRepositoryAdapter(store)

	busy := &busySourceAdapter{}
	meetingOpts := []application.MeetingServiceOption{
		application.WithNotifier(newMeetingNotifierAdapter(a.hub, now)),
	}
	if google != nil {
		busy.reader = google
		meetingOpts = append(meetingOpts, application.WithCalendarSync(google))
	}
	if observer != nil {
		meetingOpts = append(meetingOpts, application.WithTransitionObserver(observer))
	}

	availabilityService := application.NewAvailabilityService(profiles, busy, application.AvailabilityServiceConfig{
		Location:      loc,
		ImportHorizon: cfg.Slots.HorizonDays,
	}, now, logger)
	policy := meeting.Policy{
		CancellationCutoff: cfg.Meetings.CancellationCutoff,
		PendingExpiry:      cfg.Meetings.PendingExpiry,
	}
	meetingService := application.NewMeetingService(meetings, application.MeetingServiceConfig{
		Policy:          policy,
		CompletionGrace: cfg.Meetings.CompletionGrace,
	}, idGenerator, now, logger, meetingOpts...)
	suggestionService := application.NewSuggestionService(profiles, meetings, slots.NewEngine(loc), ranker, slots.Options{
		HorizonDays: cfg.Slots.HorizonDays,
		SlotLength:  cfg.Slots.SlotLength,
		MaxSlots:    cfg.Slots.MaxSlots,
	}, now, logger, application.WithExpiryPolicy(policy))

	a.sweeper = sweeper.New(meetingService, cfg.Meetings.SweepInterval, logger)

	verifier, err := httptransport.NewTokenVerifier(httptransport.TokenVerifierConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return fail(err)
	}

	calendarHandler := httptransport.NewCalendarHandler(nil, logger)
	if google != nil {
		calendarHandler = httptransport.NewCalendarHandler(google, logger)
	}
	streamer := realtime.NewStreamer(a.hub, realtime.StreamConfig{AllowedOrigins: cfg.HTTP.AllowedOrigins})

	routerCfg := httptransport.RouterConfig{
		Availability:   httptransport.NewAvailabilityHandler(availabilityService, logger),
		Suggestions:    httptransport.NewSuggestionHandler(suggestionService, logger),
		Meetings:       httptransport.NewMeetingHandler(meetingService, logger),
		Calendar:       calendarHandler,
		Realtime:       httptransport.NewRealtimeHandler(streamer, logger),
		Health:         httptransport.NewHealthHandler(checks, logger),
		Verifier:       verifier,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = metrics.Handler()
	}
	a.handler = httptransport.NewRouter(routerCfg)
	return a, nil
}

// newLimiter spreads perMinute calls evenly with a small burst. Zero disables throttling.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), min(perMinute, 5))
}
