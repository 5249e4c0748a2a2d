package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/icebreaker-scheduler/internal/application"
	"github.com/example/icebreaker-scheduler/internal/meeting"
)

type meetingService interface {
	Request(ctx context.Context, params application.RequestMeetingParams) (application.MeetingRecord, error)
	Confirm(ctx context.Context, params application.MeetingActionParams) (application.MeetingRecord, error)
	Decline(ctx context.Context, params application.MeetingActionParams) (application.MeetingRecord, error)
	Cancel(ctx context.Context, params application.MeetingActionParams) (application.MeetingRecord, error)
	Complete(ctx context.Context, params application.MeetingActionParams) (application.MeetingRecord, error)
	ProposeNewTime(ctx context.Context, params application.ProposeNewTimeParams) (application.MeetingRecord, error)
	List(ctx context.Context, params application.ListMeetingsParams) ([]application.MeetingSummary, error)
	Summarize(record application.MeetingRecord, userID string) application.MeetingSummary
}

// MeetingHandler serves meeting requests and their lifecycle actions.
type MeetingHandler struct {
	service   meetingService
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	logger = defaultLogger(logger)
	return &MeetingHandler{service: service, validate: newValidator(), responder: newResponder(logger), logger: logger}
}

type meetingRequest struct {
	RecipientID       string    `json:"recipient_id" validate:"required"`
	ScheduledAt       time.Time `json:"scheduled_at" validate:"required"`
	MeetingType       string    `json:"meeting_type" validate:"max=200"`
	Location          string    `json:"location" validate:"max=200"`
	ConnectedInterest string    `json:"connected_interest" validate:"max=200"`
}

type rescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

type meetingDTO struct {
	ID                 string       `json:"id"`
	RequesterID        string       `json:"requester_id"`
	RecipientID        string       `json:"recipient_id"`
	ProposedBy         string       `json:"proposed_by"`
	ResponderID        string       `json:"responder_id,omitempty"`
	ScheduledAt        time.Time    `json:"scheduled_at"`
	Status             string       `json:"status"`
	MeetingType        string       `json:"meeting_type,omitempty"`
	Location           string       `json:"location,omitempty"`
	ConnectedInterest  string       `json:"connected_interest,omitempty"`
	ProposedAt         time.Time    `json:"proposed_at"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Version            int64        `json:"version"`
	View               meeting.View `json:"view"`
	CounterpartID      string       `json:"counterpart_id"`
	AwaitingMyResponse bool         `json:"awaiting_my_response"`
	IceBreakerDue      bool         `json:"ice_breaker_due"`
}

type meetingListResponse struct {
	Meetings []meetingDTO `json:"meetings"`
}

func newMeetingDTO(summary application.MeetingSummary) meetingDTO {
	m := summary.Meeting
	dto := meetingDTO{
		ID:                 m.ID,
		RequesterID:        m.RequesterID,
		RecipientID:        m.RecipientID,
		ProposedBy:         m.ProposedBy,
		ScheduledAt:        m.ScheduledAt.UTC(),
		Status:             string(m.Status),
		MeetingType:        m.MeetingType,
		Location:           m.Location,
		ConnectedInterest:  m.ConnectedInterest,
		ProposedAt:         m.ProposedAt.UTC(),
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
		Version:            summary.Version,
		View:               summary.View,
		CounterpartID:      summary.CounterpartID,
		AwaitingMyResponse: summary.AwaitingMyResponse,
		IceBreakerDue:      summary.IceBreakerDue,
	}
	if m.Status.AwaitingResponse() {
		dto.ResponderID = m.Responder()
	}
	return dto
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req meetingRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, validationError(err))
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.Request(r.Context(), application.RequestMeetingParams{
		Principal:         principal,
		RecipientID:       strings.TrimSpace(req.RecipientID),
		ScheduledAt:       req.ScheduledAt,
		MeetingType:       req.MeetingType,
		Location:          req.Location,
		ConnectedInterest: req.ConnectedInterest,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "MeetingHandler", "Create", "meeting_id", record.ID).Info("meeting requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newMeetingDTO(h.service.Summarize(record, principal.UserID)))
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params := application.ListMeetingsParams{}
	params.Principal, _ = PrincipalFromContext(r.Context())
	if raw := strings.TrimSpace(r.URL.Query().Get("view")); raw != "" {
		view, err := meeting.ParseView(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{"view": "must be one of upcoming awaiting history"}})
			return
		}
		params.View = view
	}

	summaries, err := h.service.List(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := meetingListResponse{Meetings: make([]meetingDTO, 0, len(summaries))}
	for _, summary := range summaries {
		resp.Meetings = append(resp.Meetings, newMeetingDTO(summary))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *MeetingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Confirm", meetingService.Confirm)
}

func (h *MeetingHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Decline", meetingService.Decline)
}

func (h *MeetingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Cancel", meetingService.Cancel)
}

func (h *MeetingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Complete", meetingService.Complete)
}

func (h *MeetingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := strings.TrimSpace(chi.URLParam(r, "meetingID"))
	if meetingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	var req rescheduleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, validationError(err))
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.ProposeNewTime(r.Context(), application.ProposeNewTimeParams{
		Principal:   principal,
		MeetingID:   meetingID,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newMeetingDTO(h.service.Summarize(record, principal.UserID)))
}

type meetingAction func(service meetingService, ctx context.Context, params application.MeetingActionParams) (application.MeetingRecord, error)

func (h *MeetingHandler) act(w http.ResponseWriter, r *http.Request, operation string, action meetingAction) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := strings.TrimSpace(chi.URLParam(r, "meetingID"))
	if meetingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := action(h.service, r.Context(), application.MeetingActionParams{Principal: principal, MeetingID: meetingID})
	if err != nil {
		handlerLogger(r.Context(), h.logger, "MeetingHandler", operation, "meeting_id", meetingID).
			Debug("meeting action rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newMeetingDTO(h.service.Summarize(record, principal.UserID)))
}
