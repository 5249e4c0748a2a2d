package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/icebreaker-scheduler/internal/calendar"
)

type calendarConnector interface {
	AuthURL(userID string) string
	Exchange(ctx context.Context, state, code string) (string, error)
	Disconnect(ctx context.Context, userID string) error
}

// CalendarHandler runs the Google Calendar OAuth flow. A nil connector
// answers 503.
type CalendarHandler struct {
	connector calendarConnector
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(connector calendarConnector, logger *slog.Logger) *CalendarHandler {
	logger = defaultLogger(logger)
	return &CalendarHandler{connector: connector, responder: newResponder(logger), logger: logger}
}

type connectResponse struct {
	AuthURL string `json:"auth_url"`
}

type connectedResponse struct {
	Connected bool   `json:"connected"`
	UserID    string `json:"user_id"`
}

func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.connector == nil {
		h.unavailable(w, r)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, connectResponse{AuthURL: h.connector.AuthURL(principal.UserID)})
}

func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.connector == nil {
		h.unavailable(w, r)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.connector.Disconnect(r.Context(), principal.UserID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Callback is the OAuth redirect target. It is not behind bearer auth; the
// state nonce identifies the user.
func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.connector == nil {
		h.unavailable(w, r)
		return
	}

	query := r.URL.Query()
	if oauthErr := query.Get("error"); oauthErr != "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("calendar authorization was denied: "+oauthErr))
		return
	}

	userID, err := h.connector.Exchange(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidState) {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		handlerLogger(r.Context(), h.logger, "CalendarHandler", "Callback").Error("token exchange failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadGateway, errors.New("could not complete calendar authorization"))
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, connectedResponse{Connected: true, UserID: userID})
}

func (h *CalendarHandler) unavailable(w http.ResponseWriter, r *http.Request) {
	newResponder(nil).writeError(r.Context(), w, http.StatusServiceUnavailable, errCalendarDisabled)
}
