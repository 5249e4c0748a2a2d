// Package metrics exposes Prometheus counters for ranking, the meeting
// lifecycle and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "icebreaker"

var (
	once sync.Once

	rankingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_outcomes_total",
			Help:      "Count of suggestion requests by ranking mode and fallback reason.",
		},
		[]string{"mode", "reason"},
	)

	gatewayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_gateway_seconds",
			Help:      "Latency of calls to the ranking gateway.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)

	meetingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meeting_transitions_total",
			Help:      "Count of meeting lifecycle actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	sideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Count of swallowed side-effect failures by kind.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(rankingOutcomes, gatewayLatency, meetingTransitions, sideEffectFailures, httpRequests)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer adapts the package counters to the narrow interfaces consumed
// by the ranking and application packages.
type Observer struct{}

// RankingOutcome counts one ranking result.
func (Observer) RankingOutcome(mode, reason string) {
	rankingOutcomes.WithLabelValues(mode, reason).Inc()
}

// GatewayLatency records one gateway round trip.
func (Observer) GatewayLatency(d time.Duration) {
	gatewayLatency.Observe(d.Seconds())
}

// MeetingTransition counts one lifecycle action. outcome is "ok" or an error kind.
func (Observer) MeetingTransition(action, outcome string) {
	meetingTransitions.WithLabelValues(action, outcome).Inc()
}

// SideEffectFailed counts one swallowed side-effect error.
func (Observer) SideEffectFailed(kind string) {
	sideEffectFailures.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
