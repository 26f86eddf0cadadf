package http

import "context"

type contextKey string

const (
	guildIDContextKey contextKey = "guild_id"
	eventIDContextKey contextKey = "event_id"
)

// ContextWithGuildID injects the guild scope resolved from the request query.
func ContextWithGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, guildIDContextKey, guildID)
}

// GuildIDFromContext extracts the guild scope from context if available.
func GuildIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(guildIDContextKey).(string)
	return id, ok
}

// ContextWithEventID injects the event identifier resolved from the request path.
func ContextWithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDContextKey, eventID)
}

// EventIDFromContext extracts an event identifier previously associated with the context.
func EventIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(eventIDContextKey).(string)
	return id, ok
}
