package http

import (
	"context"
	"log/slog"
	"net/http"
)

type eventStreamer interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) error
}

// RealtimeHandler streams meeting events to the authenticated user over a websocket.
type RealtimeHandler struct {
	streamer eventStreamer
	logger   *slog.Logger
}

func NewRealtimeHandler(streamer eventStreamer, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{streamer: streamer, logger: defaultLogger(logger)}
}

func (h *RealtimeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.streamer == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "RealtimeHandler", "Stream", "user_id", principal.UserID)
	logger.Debug("websocket connected")
	if err := h.streamer.Serve(r.Context(), w, r, principal.UserID); err != nil {
		logger.Warn("websocket stream ended", "error", err)
		return
	}
	logger.Debug("websocket closed")
}
