package ranking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 8 * time.Second

// Mode says how a Result was produced.
type Mode string

const (
	ModeRanked   Mode = "ranked"
	ModeCached   Mode = "cached"
	ModeFallback Mode = "fallback"
)

// Fallback reasons reported in Result.FallbackReason.
const (
	ReasonNoCandidates      = "no_candidates"
	ReasonNoGateway         = "no_gateway"
	ReasonThrottled         = "throttled"
	ReasonRateLimited       = "rate_limited"
	ReasonPaymentRequired   = "payment_required"
	ReasonTimeout           = "timeout"
	ReasonServiceError      = "service_error"
	ReasonNoValidSuggestion = "no_valid_suggestions"
)

// Request is the input to Rank.
type Request struct {
	Requester  availability.Model
	Recipient  availability.Model
	Preference string
	Candidates []slots.TimeSlot
	Location   *time.Location
	Now        time.Time
}

// Result is the ranked or fallback slot list.
type Result struct {
	Slots          []slots.TimeSlot `json:"slots"`
	Mode           Mode             `json:"mode"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
}

// Cache stores ranked results.
type Cache interface {
	Get(ctx context.Context, key string) ([]slots.TimeSlot, bool, error)
	Set(ctx context.Context, key string, value []slots.TimeSlot) error
}

// Observer receives ranking measurements.
type Observer interface {
	RankingOutcome(mode, reason string)
	GatewayLatency(d time.Duration)
}

// Options configures a Ranker. Zero values take defaults.
type Options struct {
	Timeout  time.Duration
	MaxSlots int
	// Limiter throttles outbound gateway calls. Nil means unlimited.
	Limiter  *rate.Limiter
	Cache    Cache
	Observer Observer
	Logger   *slog.Logger
}

// Ranker orders candidate slots.
type Ranker struct {
	gateway  Gateway
	timeout  time.Duration
	maxSlots int
	limiter  *rate.Limiter
	cache    Cache
	observer Observer
	logger   *slog.Logger
}

// NewRanker builds a Ranker. A nil gateway always falls back.
func NewRanker(gateway Gateway, opts Options) *Ranker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxSlots <= 0 {
		opts.MaxSlots = slots.DefaultMaxSlots
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ranker{
		gateway:  gateway,
		timeout:  opts.Timeout,
		maxSlots: opts.MaxSlots,
		limiter:  opts.Limiter,
		cache:    opts.Cache,
		observer: opts.Observer,
		logger:   opts.Logger.With("component", "ranker"),
	}
}

// Rank returns the candidates reordered and annotated by the gateway, or the
// chronological candidates without reasons when the gateway fails, times
// out, or returns nothing usable. It never returns a slot that is not one
// of the candidates and never fails.
func (r *Ranker) Rank(ctx context.Context, req Request) Result {
	if len(req.Candidates) == 0 {
		return r.finish(Result{Slots: []slots.TimeSlot{}, Mode: ModeFallback, FallbackReason: ReasonNoCandidates})
	}
	if r == nil || r.gateway == nil {
		return r.finish(r.fallback(req, ReasonNoGateway))
	}

	key := CacheKey(req)
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.WarnContext(ctx, "suggestion cache read failed", "error", err)
		}
		if ok {
			if valid := matchCached(req.Candidates, cached, r.maxSlots); len(valid) > 0 {
				return r.finish(Result{Slots: valid, Mode: ModeCached})
			}
		}
	}

	if r.limiter != nil && !r.limiter.Allow() {
		return r.finish(r.fallback(req, ReasonThrottled))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	suggestions, err := r.gateway.RankSlots(callCtx, GatewayRequest{
		Requester:  req.Requester,
		Recipient:  req.Recipient,
		Preference: req.Preference,
		Candidates: req.Candidates,
		TimeZone:   locationName(req.Location),
		Now:        req.Now,
	})
	if r.observer != nil {
		r.observer.GatewayLatency(time.Since(started))
	}
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		reason := classify(err)
		r.logger.WarnContext(ctx, "ranking gateway failed, using chronological slots", "reason", reason, "error", err)
		return r.finish(r.fallback(req, reason))
	}

	ranked := Match(req.Candidates, suggestions, r.maxSlots)
	if len(ranked) == 0 {
		r.logger.InfoContext(ctx, "ranking gateway returned no usable suggestions", "returned", len(suggestions))
		return r.finish(r.fallback(req, ReasonNoValidSuggestion))
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, ranked); err != nil {
			r.logger.WarnContext(ctx, "suggestion cache write failed", "error", err)
		}
	}
	return r.finish(Result{Slots: ranked, Mode: ModeRanked})
}

func (r *Ranker) fallback(req Request, reason string) Result {
	limit := slots.DefaultMaxSlots
	if r != nil {
		limit = r.maxSlots
	}
	n := min(len(req.Candidates), limit)
	out := make([]slots.TimeSlot, n)
	for i := range n {
		out[i] = req.Candidates[i]
		out[i].Rationale = ""
	}
	return Result{Slots: out, Mode: ModeFallback, FallbackReason: reason}
}

func (r *Ranker) finish(result Result) Result {
	if r != nil && r.observer != nil {
		r.observer.RankingOutcome(string(result.Mode), result.FallbackReason)
	}
	return result
}

func classify(err error) string {
	var serviceErr *ServiceError
	switch {
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrPaymentRequired):
		return ReasonPaymentRequired
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	case errors.As(err, &serviceErr):
		return ReasonServiceError
	default:
		return ReasonServiceError
	}
}

// Match keeps the suggestions that name a candidate's exact date, start and
// end, in suggestion order, without duplicates and up to limit. Each kept
// slot is the candidate itself carrying the suggestion's reason.
func Match(candidates []slots.TimeSlot, suggestions []Suggestion, limit int) []slots.TimeSlot {
	type window struct {
		date       availability.Date
		start, end availability.TimeOfDay
	}
	index := make(map[window]int, len(candidates))
	for i, c := range candidates {
		index[window{c.Date, c.Start, c.End}] = i
	}

	used := make(map[int]bool, len(suggestions))
	out := make([]slots.TimeSlot, 0, min(len(suggestions), limit))
	for _, s := range suggestions {
		if len(out) == limit {
			break
		}
		date, err := availability.ParseDate(s.Date)
		if err != nil {
			continue
		}
		start, err := availability.ParseTimeOfDay(s.StartTime)
		if err != nil {
			continue
		}
		end, err := availability.ParseTimeOfDay(s.EndTime)
		if err != nil {
			continue
		}
		i, ok := index[window{date, start, end}]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		slot := candidates[i]
		slot.Rationale = s.Reason
		out = append(out, slot)
	}
	return out
}

// matchCached re-validates a cached ranking against the current candidates.
func matchCached(candidates, cached []slots.TimeSlot, limit int) []slots.TimeSlot {
	suggestions := make([]Suggestion, len(cached))
	for i, slot := range cached {
		suggestions[i] = Suggestion{
			Date:      slot.Date.String(),
			StartTime: slot.Start.String(),
			EndTime:   slot.End.String(),
			Reason:    slot.Rationale,
		}
	}
	return Match(candidates, suggestions, limit)
}

// CacheKey derives a stable key from everything that influences a ranking.
func CacheKey(req Request) string {
	payload, err := json.Marshal(struct {
		Requester  availability.Model `json:"requester"`
		Recipient  availability.Model `json:"recipient"`
		Preference string             `json:"preference"`
		Candidates []slots.TimeSlot   `json:"candidates"`
		TimeZone   string             `json:"tz"`
	}{req.Requester, req.Recipient, req.Preference, req.Candidates, locationName(req.Location)})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return "ranking:" + hex.EncodeToString(sum[:])
}

func locationName(loc *time.Location) string {
	if loc == nil {
		return time.UTC.String()
	}
	return loc.String()
}
