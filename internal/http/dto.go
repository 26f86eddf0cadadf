package http

import (
	"strings"
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

type lockDTO struct {
	ID              string `json:"id"`
	EventID         string `json:"eventId"`
	ParticipantID   string `json:"participantId"`
	ParticipantType string `json:"participantType"`
	LockedBy        string `json:"lockedBy"`
	LockedByName    string `json:"lockedByName,omitempty"`
	LockedAt        string `json:"lockedAt"`
	ExpiresAt       string `json:"expiresAt"`
}

func toLockDTO(lock persistence.Lock) lockDTO {
	return lockDTO{
		ID:              lock.ID,
		EventID:         lock.EventID,
		ParticipantID:   lock.ParticipantID,
		ParticipantType: string(lock.ParticipantType),
		LockedBy:        lock.LockedBy,
		LockedByName:    lock.LockedByName,
		LockedAt:        formatTime(lock.LockedAt),
		ExpiresAt:       formatTime(lock.ExpiresAt),
	}
}

func toLockDTOs(locks []persistence.Lock) []lockDTO {
	out := make([]lockDTO, 0, len(locks))
	for _, lock := range locks {
		out = append(out, toLockDTO(lock))
	}
	return out
}

type eventDTO struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Encounter       string             `json:"encounter"`
	ScheduledTime   string             `json:"scheduledTime"`
	DurationMinutes int                `json:"durationMinutes"`
	TeamLeaderID    string             `json:"teamLeaderId"`
	Status          string             `json:"status"`
	Roster          persistence.Roster `json:"roster"`
	CreatedAt       string             `json:"createdAt"`
	LastModified    string             `json:"lastModified"`
	Version         int64              `json:"version"`
}

func toEventDTO(event persistence.ScheduledEvent) eventDTO {
	return eventDTO{
		ID:              event.ID,
		Name:            event.Name,
		Encounter:       event.Encounter,
		ScheduledTime:   formatTime(event.ScheduledTime),
		DurationMinutes: int(event.Duration / time.Minute),
		TeamLeaderID:    event.TeamLeaderID,
		Status:          string(event.Status),
		Roster:          event.Roster,
		CreatedAt:       formatTime(event.CreatedAt),
		LastModified:    formatTime(event.LastModified),
		Version:         event.Version,
	}
}

func toEventDTOs(events []persistence.ScheduledEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

// streamEnvelope wraps server-push payloads.
type streamEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}
