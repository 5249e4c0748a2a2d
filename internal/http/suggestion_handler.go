package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/slots"
)

const maxPreferenceLength = 200

type suggestionService interface {
	Suggest(ctx context.Context, params application.SuggestParams) (application.SuggestionResult, error)
}

// SuggestionHandler returns ranked meeting times shared with another user.
type SuggestionHandler struct {
	service   suggestionService
	responder responder
	logger    *slog.Logger
}

func NewSuggestionHandler(service suggestionService, logger *slog.Logger) *SuggestionHandler {
	logger = defaultLogger(logger)
	return &SuggestionHandler{service: service, responder: newResponder(logger), logger: logger}
}

type suggestionResponse struct {
	Slots          []slots.TimeSlot `json:"slots"`
	Mode           string           `json:"mode"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	NoOverlap      bool             `json:"no_overlap"`
}

func (h *SuggestionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recipientID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if recipientID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}
	preference := strings.TrimSpace(r.URL.Query().Get("preference"))
	if len(preference) > maxPreferenceLength {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{"preference": "must be at most 200 characters"}})
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.Suggest(r.Context(), application.SuggestParams{
		Principal:   principal,
		RecipientID: recipientID,
		Preference:  preference,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "SuggestionHandler", "Suggest", "recipient_id", recipientID).
		Debug("suggestions served", "mode", result.Mode, "slots", len(result.Slots), "fallback_reason", result.FallbackReason)

	resp := suggestionResponse{
		Slots:          result.Slots,
		Mode:           string(result.Mode),
		FallbackReason: result.FallbackReason,
		NoOverlap:      result.NoOverlap,
	}
	if resp.Slots == nil {
		resp.Slots = []slots.TimeSlot{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}
