package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/roster-draft/internal/application"
	"github.com/example/roster-draft/internal/persistence"
)

type eventService interface {
	Create(ctx context.Context, params application.CreateEventParams) (persistence.ScheduledEvent, error)
	Get(ctx context.Context, guildID, eventID string) (persistence.ScheduledEvent, error)
	List(ctx context.Context, params application.ListEventsParams) (application.ListEventsResult, error)
	Update(ctx context.Context, params application.UpdateEventParams) (persistence.ScheduledEvent, error)
	Delete(ctx context.Context, guildID, eventID string) error
	Assign(ctx context.Context, params application.AssignSlotParams) (persistence.ScheduledEvent, error)
	Unassign(ctx context.Context, params application.UnassignSlotParams) (persistence.ScheduledEvent, error)
}

type EventHandler struct {
	service   eventService
	responder responder
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, responder: newResponder(logger)}
}

type createEventRequest struct {
	Name            string `json:"name"`
	Encounter       string `json:"encounter"`
	ScheduledTime   string `json:"scheduledTime"`
	DurationMinutes int    `json:"durationMinutes"`
	TeamLeaderID    string `json:"teamLeaderId"`
}

type updateEventRequest struct {
	Name            *string `json:"name"`
	Encounter       *string `json:"encounter"`
	ScheduledTime   *string `json:"scheduledTime"`
	DurationMinutes *int    `json:"durationMinutes"`
	Status          *string `json:"status"`
}

type assignSlotRequest struct {
	SlotID      string                  `json:"slotId"`
	Participant persistence.Participant `json:"participant"`
	Job         string                  `json:"job"`
	DraftedBy   string                  `json:"draftedBy"`
}

type listEventsResponse struct {
	Events     []eventDTO `json:"events"`
	NextCursor string     `json:"nextCursor,omitempty"`
	HasMore    bool       `json:"hasMore"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, ok := h.guild(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.Create(r.Context(), application.CreateEventParams{
		GuildID:       guildID,
		Name:          strings.TrimSpace(req.Name),
		Encounter:     strings.TrimSpace(req.Encounter),
		ScheduledTime: parseTime(req.ScheduledTime),
		Duration:      time.Duration(req.DurationMinutes) * time.Minute,
		TeamLeaderID:  strings.TrimSpace(req.TeamLeaderID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventDTO(event))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	event, err := h.service.Get(r.Context(), guildID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, ok := h.guild(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	params := application.ListEventsParams{
		GuildID:      guildID,
		TeamLeaderID: strings.TrimSpace(query.Get("teamLeaderId")),
		Status:       persistence.EventStatus(strings.TrimSpace(query.Get("status"))),
		Encounter:    strings.TrimSpace(query.Get("encounter")),
		Cursor:       strings.TrimSpace(query.Get("cursor")),
	}
	params.DateFrom = parseTimeFilter(query, "dateFrom")
	params.DateTo = parseTimeFilter(query, "dateTo")
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{
		Events:     toEventDTOs(result.Events),
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	patch := application.EventPatch{
		Name:      req.Name,
		Encounter: req.Encounter,
	}
	if req.ScheduledTime != nil {
		ts := parseTime(*req.ScheduledTime)
		patch.ScheduledTime = &ts
	}
	if req.DurationMinutes != nil {
		duration := time.Duration(*req.DurationMinutes) * time.Minute
		patch.Duration = &duration
	}
	if req.Status != nil {
		status := persistence.EventStatus(strings.TrimSpace(*req.Status))
		patch.Status = &status
	}

	event, err := h.service.Update(r.Context(), application.UpdateEventParams{
		GuildID: guildID,
		EventID: eventID,
		Patch:   patch,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), guildID, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req assignSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.Assign(r.Context(), application.AssignSlotParams{
		GuildID:     guildID,
		EventID:     eventID,
		SlotID:      strings.TrimSpace(req.SlotID),
		Participant: req.Participant,
		Job:         strings.TrimSpace(req.Job),
		DraftedBy:   strings.TrimSpace(req.DraftedBy),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) Unassign(w http.ResponseWriter, r *http.Request, slotID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	if strings.TrimSpace(slotID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSlotID)
		return
	}

	event, err := h.service.Unassign(r.Context(), application.UnassignSlotParams{
		GuildID: guildID,
		EventID: eventID,
		SlotID:  slotID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) guild(w http.ResponseWriter, r *http.Request) (string, bool) {
	guildID, ok := GuildIDFromContext(r.Context())
	if !ok || strings.TrimSpace(guildID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingGuildID)
		return "", false
	}
	return guildID, true
}

func (h *EventHandler) scope(w http.ResponseWriter, r *http.Request) (guildID, eventID string, ok bool) {
	guildID, ok = h.guild(w, r)
	if !ok {
		return "", "", false
	}

	eventID, ok = EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return "", "", false
	}

	return guildID, eventID, true
}

func parseTimeFilter(query url.Values, name string) *time.Time {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return nil
	}
	ts := parseTime(raw)
	if ts.IsZero() {
		return nil
	}
	return &ts
}
