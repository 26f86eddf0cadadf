package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/roster-draft/internal/logging"
)

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}

// RequireGuild resolves the guild scope from the guildId query parameter and
// rejects requests that omit it. Every handler reads the guild from context.
func RequireGuild(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guildID := strings.TrimSpace(r.URL.Query().Get("guildId"))
			if guildID == "" {
				responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingGuildID)
				return
			}

			ctx := ContextWithGuildID(r.Context(), guildID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
