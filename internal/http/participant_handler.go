package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/roster-draft/internal/persistence"
	"github.com/example/roster-draft/internal/replicator"
)

// participantMirror is the replicated, read-side view of the participant
// collections. Reads and streams are served from the in-memory mirror, not
// from the store.
type participantMirror interface {
	Participants(guildID string) []persistence.Participant
	Stream(ctx context.Context, guildID string) (<-chan replicator.Event, func())
}

// participantIngest is the write side used by the upstream signup pipeline to
// push participant documents into the store, which in turn feeds the mirror.
type participantIngest interface {
	UpsertParticipant(ctx context.Context, participant persistence.Participant) error
	DeleteParticipant(ctx context.Context, guildID string, participantType persistence.ParticipantType, id string) error
}

type ParticipantHandler struct {
	mirror    participantMirror
	ingest    participantIngest
	responder responder
	logger    *slog.Logger
}

func NewParticipantHandler(mirror participantMirror, ingest participantIngest, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		mirror:    mirror,
		ingest:    ingest,
		responder: newResponder(logger),
		logger:    defaultLogger(logger),
	}
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, ok := h.guild(w, r)
	if !ok {
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.mirror.Participants(guildID))
}

// Stream pushes individual participant changes as server-sent events. The
// current mirror contents are replayed first, then live changes follow.
func (h *ParticipantHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, ok := h.guild(w, r)
	if !ok {
		return
	}

	events, cancel := h.mirror.Stream(r.Context(), guildID)
	defer cancel()

	sse, err := newSSEWriter(w)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "participants", "stream")
	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			envelope := streamEnvelope{
				Type: "participant_" + string(event.Type),
				Data: event.Participant,
			}
			if err := sse.WriteEvent(envelope); err != nil {
				logger.WarnContext(r.Context(), "participant stream write failed", "error", err)
				return
			}
		}
	}
}

// Ingest stores or replaces one participant document pushed by the upstream
// signup pipeline. The path names the participant; the body carries the rest.
func (h *ParticipantHandler) Ingest(w http.ResponseWriter, r *http.Request, participantType, participantID string) {
	if h == nil || h.ingest == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, ok := h.guild(w, r)
	if !ok {
		return
	}

	var participant persistence.Participant
	if err := json.NewDecoder(r.Body).Decode(&participant); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	participant.GuildID = guildID
	participant.Type = persistence.ParticipantType(participantType)
	participant.ID = participantID

	if err := h.ingest.UpsertParticipant(r.Context(), participant); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Remove deletes one participant document from the store.
func (h *ParticipantHandler) Remove(w http.ResponseWriter, r *http.Request, participantType, participantID string) {
	if h == nil || h.ingest == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	guildID, ok := h.guild(w, r)
	if !ok {
		return
	}

	err := h.ingest.DeleteParticipant(r.Context(), guildID, persistence.ParticipantType(participantType), participantID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ParticipantHandler) guild(w http.ResponseWriter, r *http.Request) (string, bool) {
	guildID, ok := GuildIDFromContext(r.Context())
	if !ok || strings.TrimSpace(guildID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingGuildID)
		return "", false
	}
	return guildID, true
}
