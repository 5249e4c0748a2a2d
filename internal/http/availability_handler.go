package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/availability"
)

type availabilityService interface {
	Get(ctx context.Context, params application.GetAvailabilityParams) (availability.Model, error)
	Replace(ctx context.Context, params application.ReplaceAvailabilityParams) (availability.Model, error)
	SetDay(ctx context.Context, params application.SetDayParams) (availability.Model, error)
	AddDateOverride(ctx context.Context, params application.AddDateOverrideParams) (availability.Model, error)
	ParseText(ctx context.Context, params application.ParseTextParams) (availability.Model, error)
	ImportCalendar(ctx context.Context, params application.ImportCalendarParams) (availability.Model, error)
}

// AvailabilityHandler serves the principal's weekly availability.
type AvailabilityHandler struct {
	service   availabilityService
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	logger = defaultLogger(logger)
	return &AvailabilityHandler{service: service, validate: newValidator(), responder: newResponder(logger), logger: logger}
}

type dayRequest struct {
	Active bool   `json:"active"`
	Start  string `json:"start" validate:"required_if=Active true,omitempty,timeofday"`
	End    string `json:"end" validate:"required_if=Active true,omitempty,timeofday"`
}

type overrideRequest struct {
	Date  string `json:"date" validate:"required,isodate"`
	Start string `json:"start" validate:"required,timeofday"`
	End   string `json:"end" validate:"required,timeofday"`
}

type parseRequest struct {
	Text  string `json:"text" validate:"required,max=500"`
	Apply bool   `json:"apply"`
}

type parseResponse struct {
	Availability availability.Model `json:"availability"`
	Applied      bool               `json:"applied"`
}

type importRequest struct {
	Busy []busyIntervalRequest `json:"busy" validate:"dive"`
}

type busyIntervalRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	model, err := h.service.Get(r.Context(), application.GetAvailabilityParams{Principal: principal})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, model)
}

func (h *AvailabilityHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var model availability.Model
	if err := decodeJSON(r, &model, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	saved, err := h.service.Replace(r.Context(), application.ReplaceAvailabilityParams{Principal: principal, Model: model})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, saved)
}

func (h *AvailabilityHandler) SetDay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	day, err := availability.ParseWeekday(chi.URLParam(r, "day"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{"day": "must be a weekday name"}})
		return
	}

	var req dayRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, validationError(err))
		return
	}

	start, end := availability.MustTimeOfDay(9, 0), availability.MustTimeOfDay(17, 0)
	if req.Start != "" {
		start, _ = availability.ParseTimeOfDay(req.Start)
	}
	if req.End != "" {
		end, _ = availability.ParseTimeOfDay(req.End)
	}

	principal, _ := PrincipalFromContext(r.Context())
	model, err := h.service.SetDay(r.Context(), application.SetDayParams{
		Principal: principal,
		Day:       day,
		Active:    req.Active,
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, model)
}

func (h *AvailabilityHandler) AddOverride(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req overrideRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, validationError(err))
		return
	}

	date, _ := availability.ParseDate(req.Date)
	start, _ := availability.ParseTimeOfDay(req.Start)
	end, _ := availability.ParseTimeOfDay(req.End)

	principal, _ := PrincipalFromContext(r.Context())
	model, err := h.service.AddDateOverride(r.Context(), application.AddDateOverrideParams{
		Principal: principal,
		Date:      date,
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, model)
}

func (h *AvailabilityHandler) Parse(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req parseRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, validationError(err))
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	model, err := h.service.ParseText(r.Context(), application.ParseTextParams{Principal: principal, Text: req.Text, Apply: req.Apply})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, parseResponse{Availability: model, Applied: req.Apply})
}

func (h *AvailabilityHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req importRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, validationError(err))
		return
	}

	busy := make([]availability.BusyInterval, 0, len(req.Busy))
	for _, interval := range req.Busy {
		busy = append(busy, availability.BusyInterval{Start: interval.Start, End: interval.End})
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "AvailabilityHandler", "Import", "intervals", len(busy))
	model, err := h.service.ImportCalendar(r.Context(), application.ImportCalendarParams{Principal: principal, Busy: busy})
	if err != nil {
		logger.Debug("calendar import failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, model)
}
