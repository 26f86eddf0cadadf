package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/roster-draft/internal/application"
	"github.com/example/roster-draft/internal/logging"
	"github.com/example/roster-draft/internal/persistence"
)

var (
	errBadRequestBody    = errors.New("request body is not valid JSON")
	errInvalidEventID    = errors.New("event id is required")
	errMissingGuildID    = errors.New("guildId query parameter is required")
	errMissingHolderID   = errors.New("teamLeaderId query parameter is required")
	errInvalidSlotID     = errors.New("slot id is required")
	errStreamUnflushable = errors.New("streaming is not supported by the underlying connection")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps the application error taxonomy onto HTTP statuses.
// Conflicts carry structured payloads suitable for direct display.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	logger := r.loggerFor(ctx)

	var lockedErr *application.ParticipantLockedError
	if errors.As(err, &lockedErr) {
		expires := lockedErr.LockExpiresAt
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:         "PARTICIPANT_LOCKED",
			Message:           lockedErr.Error(),
			CurrentHolder:     lockedErr.CurrentHolder,
			CurrentHolderName: lockedErr.CurrentHolderName,
			LockExpiresAt:     &expires,
		})
		return
	}

	var heldErr *application.LockHeldByOtherError
	if errors.As(err, &heldErr) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:     "LOCK_HELD_BY_OTHER",
			Message:       heldErr.Error(),
			CurrentHolder: heldErr.CurrentHolder,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "the requested resource was not found"})
	case errors.Is(err, application.ErrLockExpired):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "LOCK_EXPIRED",
			Message:   "the lock has already expired",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "the request contains invalid fields",
				Errors:  vErr.FieldErrors,
			})
			return
		}

		logger.ErrorContext(ctx, "request failed", "error", err, "kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "an internal error occurred"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode         string            `json:"error_code,omitempty"`
	Message           string            `json:"message"`
	Errors            map[string]string `json:"errors,omitempty"`
	CurrentHolder     string            `json:"current_holder,omitempty"`
	CurrentHolderName string            `json:"current_holder_name,omitempty"`
	LockExpiresAt     *time.Time        `json:"lock_expires_at,omitempty"`
}
