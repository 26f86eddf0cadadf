package persistence

import "time"

// ParticipantType distinguishes the two signup pools a draftable participant
// can come from.
type ParticipantType string

const (
	ParticipantTypeHelper  ParticipantType = "helper"
	ParticipantTypeProgger ParticipantType = "progger"
)

// IsValid reports whether the value is one of the known participant types.
func (t ParticipantType) IsValid() bool {
	return t == ParticipantTypeHelper || t == ParticipantTypeProgger
}

// Lock represents one exclusive, time-bounded claim on a participant within an
// event. A lock is immutable once created; it disappears through an explicit
// release or the expiry sweep.
type Lock struct {
	ID              string
	GuildID         string
	EventID         string
	ParticipantID   string
	ParticipantType ParticipantType
	LockedBy        string
	LockedByName    string
	LockedAt        time.Time
	ExpiresAt       time.Time
}

// Active reports whether the lock is still visible at the given instant.
func (l Lock) Active(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// EventStatus tracks the lifecycle of a scheduled event.
type EventStatus string

const (
	EventStatusDraft      EventStatus = "draft"
	EventStatusPublished  EventStatus = "published"
	EventStatusInProgress EventStatus = "in-progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// IsValid reports whether the value is one of the known event statuses.
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusInProgress,
		EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// ScheduledEvent represents an event document with its embedded roster.
// Version increments on every mutation; LastModified tracks the write time.
type ScheduledEvent struct {
	ID            string
	GuildID       string
	Name          string
	Encounter     string
	ScheduledTime time.Time
	Duration      time.Duration
	TeamLeaderID  string
	Status        EventStatus
	Roster        Roster
	CreatedAt     time.Time
	LastModified  time.Time
	Version       int64
}

// Roster holds the ordered party slots of an event. FilledSlots is derived
// from Party on every mutation and is never an independent source of truth.
type Roster struct {
	Party       []PartySlot `json:"party"`
	TotalSlots  int         `json:"totalSlots"`
	FilledSlots int         `json:"filledSlots"`
}

// PartySlot is a single position in the roster.
type PartySlot struct {
	ID                  string       `json:"id"`
	Role                string       `json:"role"`
	Job                 string       `json:"job,omitempty"`
	AssignedParticipant *Participant `json:"assignedParticipant,omitempty"`
	IsHelperSlot        bool         `json:"isHelperSlot"`
	DraftedBy           string       `json:"draftedBy,omitempty"`
	DraftedAt           *time.Time   `json:"draftedAt,omitempty"`
}

// Participant is a read-mostly projection of an upstream signup or helper
// record. It is mirrored from the store's participants collection; this core
// never originates participant data itself.
type Participant struct {
	GuildID      string          `json:"guildId"`
	Type         ParticipantType `json:"type"`
	ID           string          `json:"id"`
	DiscordID    string          `json:"discordId"`
	Name         string          `json:"name"`
	Job          string          `json:"job"`
	Encounter    string          `json:"encounter,omitempty"`
	ProgPoint    string          `json:"progPoint,omitempty"`
	Availability []string        `json:"availability,omitempty"`
	IsConfirmed  bool            `json:"isConfirmed"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Key returns the composite mirror key for the participant.
func (p Participant) Key() string {
	return p.GuildID + "|" + string(p.Type) + "|" + p.ID
}

// ChangeType labels a change-feed notification.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ParticipantChange is one notification from the participants change feed.
type ParticipantChange struct {
	Type        ChangeType
	Participant Participant
}

// EventKey is the keyset position used for cursor pagination over events,
// ordered by (ScheduledTime DESC, ID DESC).
type EventKey struct {
	ID            string    `json:"id"`
	ScheduledTime time.Time `json:"scheduledTime"`
}
