package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/roster-draft/internal/application"
	"github.com/example/roster-draft/internal/persistence"
)

type lockService interface {
	Acquire(ctx context.Context, params application.AcquireLockParams) (persistence.Lock, error)
	Release(ctx context.Context, params application.ReleaseLockParams) error
	ReleaseAll(ctx context.Context, guildID, eventID, holderID string) ([]persistence.Lock, error)
	ListActive(ctx context.Context, guildID, eventID string) ([]persistence.Lock, error)
	WatchActive(ctx context.Context, guildID, eventID string) (<-chan []persistence.Lock, func(), error)
}

type LockHandler struct {
	service   lockService
	responder responder
	logger    *slog.Logger
}

func NewLockHandler(service lockService, logger *slog.Logger) *LockHandler {
	return &LockHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

type acquireLockRequest struct {
	ParticipantID   string `json:"participantId"`
	ParticipantType string `json:"participantType"`
	SlotID          string `json:"slotId"`
}

func (h *LockHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	locks, err := h.service.ListActive(r.Context(), guildID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLockDTOs(locks))
}

func (h *LockHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	holderID := strings.TrimSpace(r.URL.Query().Get("teamLeaderId"))
	if holderID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingHolderID)
		return
	}

	var req acquireLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	lock, err := h.service.Acquire(r.Context(), application.AcquireLockParams{
		GuildID:         guildID,
		EventID:         eventID,
		ParticipantID:   strings.TrimSpace(req.ParticipantID),
		ParticipantType: persistence.ParticipantType(strings.TrimSpace(req.ParticipantType)),
		HolderID:        holderID,
		HolderName:      strings.TrimSpace(r.URL.Query().Get("teamLeaderName")),
		SlotID:          strings.TrimSpace(req.SlotID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toLockDTO(lock))
}

// Release frees a single claim. The path names the participant; the holder
// comes from the teamLeaderId query parameter.
func (h *LockHandler) Release(w http.ResponseWriter, r *http.Request, participantType, participantID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	holderID := strings.TrimSpace(r.URL.Query().Get("teamLeaderId"))
	if holderID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingHolderID)
		return
	}

	err := h.service.Release(r.Context(), application.ReleaseLockParams{
		GuildID:         guildID,
		EventID:         eventID,
		ParticipantID:   participantID,
		ParticipantType: persistence.ParticipantType(participantType),
		HolderID:        holderID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ReleaseAll frees every claim the holder owns on the event, typically when a
// draft session ends or the client disconnects for good.
func (h *LockHandler) ReleaseAll(w http.ResponseWriter, r *http.Request, holderID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	released, err := h.service.ReleaseAll(r.Context(), guildID, eventID, holderID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"released": toLockDTOs(released),
	})
}

// Stream pushes the full active lock set as a server-sent event whenever it
// changes. The first frame is the current state, so clients never render from
// an empty screen.
func (h *LockHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, eventID, ok := h.scope(w, r)
	if !ok {
		return
	}

	updates, cancel, err := h.service.WatchActive(r.Context(), guildID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	defer cancel()

	sse, err := newSSEWriter(w)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "locks", "stream", "event_id", eventID)
	for {
		select {
		case <-r.Context().Done():
			return
		case locks, open := <-updates:
			if !open {
				return
			}
			if err := sse.WriteEvent(streamEnvelope{Type: "locks_updated", Data: toLockDTOs(locks)}); err != nil {
				logger.WarnContext(r.Context(), "lock stream write failed", "error", err)
				return
			}
		}
	}
}

func (h *LockHandler) scope(w http.ResponseWriter, r *http.Request) (guildID, eventID string, ok bool) {
	guildID, ok = GuildIDFromContext(r.Context())
	if !ok || strings.TrimSpace(guildID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingGuildID)
		return "", "", false
	}

	eventID, ok = EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return "", "", false
	}

	return guildID, eventID, true
}
