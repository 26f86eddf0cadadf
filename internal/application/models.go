package application

import (
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

// AcquireLockParams wraps the data required to claim a participant.
type AcquireLockParams struct {
	GuildID         string
	EventID         string
	ParticipantID   string
	ParticipantType persistence.ParticipantType
	HolderID        string
	HolderName      string
	// SlotID optionally records the slot the holder intends to fill. It is
	// informational only; slot state is owned by the roster path.
	SlotID string
}

// ReleaseLockParams wraps the data required to release a claim.
type ReleaseLockParams struct {
	GuildID         string
	EventID         string
	ParticipantID   string
	ParticipantType persistence.ParticipantType
	HolderID        string
}

// CreateEventParams wraps the data required to create a scheduled event.
type CreateEventParams struct {
	GuildID       string
	Name          string
	Encounter     string
	ScheduledTime time.Time
	Duration      time.Duration
	TeamLeaderID  string
}

// EventPatch carries the optional fields of a partial event update. Nil
// fields are left untouched by the merge.
type EventPatch struct {
	Name          *string
	Encounter     *string
	ScheduledTime *time.Time
	Duration      *time.Duration
	Status        *persistence.EventStatus
}

// UpdateEventParams wraps the data required to patch an event.
type UpdateEventParams struct {
	GuildID string
	EventID string
	Patch   EventPatch
}

// ListEventsParams narrows and pages event listings.
type ListEventsParams struct {
	GuildID      string
	TeamLeaderID string
	Status       persistence.EventStatus
	Encounter    string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Cursor       string
}

// ListEventsResult is one page of events plus the cursor for the next page.
type ListEventsResult struct {
	Events     []persistence.ScheduledEvent
	NextCursor string
	HasMore    bool
}

// AssignSlotParams wraps the data required to place a participant in a slot.
type AssignSlotParams struct {
	GuildID     string
	EventID     string
	SlotID      string
	Participant persistence.Participant
	// Job overrides the participant's default job for this slot when set.
	Job       string
	DraftedBy string
}

// UnassignSlotParams wraps the data required to clear a slot.
type UnassignSlotParams struct {
	GuildID string
	EventID string
	SlotID  string
}
