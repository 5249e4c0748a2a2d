// Package ranking orders candidate meeting slots with an external
// text-generation service and degrades to the chronological order whenever
// that service cannot answer.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/icebreaker-scheduler/internal/availability"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

var (
	// ErrRateLimited is returned by a gateway when the provider throttles us.
	ErrRateLimited = errors.New("ranking: rate limited")
	// ErrPaymentRequired is returned by a gateway when the provider account is out of credit.
	ErrPaymentRequired = errors.New("ranking: payment required")
)

// ServiceError is any other gateway failure.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return "ranking: service error: " + e.Message
	}
	return fmt.Sprintf("ranking: service error (status %d): %s", e.StatusCode, e.Message)
}

// Suggestion is one ranked slot as returned by a gateway. Fields use the
// same text forms as slots.TimeSlot.
type Suggestion struct {
	Day       string `json:"day"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason"`
}

// GatewayRequest is what a gateway receives.
type GatewayRequest struct {
	Requester  availability.Model
	Recipient  availability.Model
	Preference string
	Candidates []slots.TimeSlot
	TimeZone   string
	Now        time.Time
}

// Gateway ranks candidate slots.
type Gateway interface {
	RankSlots(ctx context.Context, req GatewayRequest) ([]Suggestion, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, req GatewayRequest) ([]Suggestion, error)

// RankSlots calls f.
func (f GatewayFunc) RankSlots(ctx context.Context, req GatewayRequest) ([]Suggestion, error) {
	return f(ctx, req)
}
