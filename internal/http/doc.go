// Package http exposes the guild-scoped REST and server-push surface of the
// roster draft service: lock acquisition and release, scheduled-event CRUD
// with cursor pagination, roster slot mutation, and the live lock and
// participant streams.
package http
