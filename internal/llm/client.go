// Package llm implements ranking.Gateway against an OpenAI-compatible chat
// completions endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/example/icebreaker-scheduler/internal/ranking"
)

const defaultModel = "gpt-4o-mini"

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// HTTPClient overrides the transport. Its timeout should exceed the
	// ranker's per-call deadline, which is enforced through the context.
	HTTPClient *http.Client
}

// Client calls a chat completions API to rank candidate slots.
type Client struct {
	api   *openai.Client
	model string
}

var _ ranking.Gateway = (*Client)(nil)

// NewClient constructs a client. BaseURL is required.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("llm: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = base
	apiConfig.HTTPClient = cfg.HTTPClient
	return &Client{api: openai.NewClientWithConfig(apiConfig), model: cfg.Model}, nil
}

type suggestionEnvelope struct {
	Suggestions []ranking.Suggestion `json:"suggestions"`
}

// RankSlots asks the model to order the candidates and explain each choice.
func (c *Client) RankSlots(ctx context.Context, req ranking.GatewayRequest) ([]ranking.Suggestion, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ranking.ServiceError{StatusCode: http.StatusOK, Message: "response has no choices"}
	}
	return parseSuggestions(resp.Choices[0].Message.Content)
}

// mapError turns client errors into the ranking error taxonomy. Context
// errors stay in the chain so the ranker can report a timeout.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("llm: call gateway: %w", err)
	}

	var (
		status  int
		message = err.Error()
		apiErr  *openai.APIError
		reqErr  *openai.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusTooManyRequests:
		return ranking.ErrRateLimited
	case http.StatusPaymentRequired:
		return ranking.ErrPaymentRequired
	}
	return &ranking.ServiceError{StatusCode: status, Message: message}
}

// parseSuggestions accepts the JSON object, optionally wrapped in a
// markdown code fence, or a bare array.
func parseSuggestions(content string) ([]ranking.Suggestion, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "[") {
		var list []ranking.Suggestion
		if err := json.Unmarshal([]byte(content), &list); err != nil {
			return nil, &ranking.ServiceError{Message: "invalid suggestion list: " + err.Error()}
		}
		return list, nil
	}

	var envelope suggestionEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, &ranking.ServiceError{Message: "invalid suggestion object: " + err.Error()}
	}
	return envelope.Suggestions, nil
}
