package persistence

import (
	"context"
	"time"
)

// LockRepository stores draft locks. Expiry is lazy: read operations filter on
// the supplied reference time, while DeleteExpiredLocks is the independent
// garbage-collection pass.
type LockRepository interface {
	// CreateLock inserts a new lock. It returns ErrDuplicate when an active
	// lock already occupies the (guild, event, participant, type) tuple;
	// expired rows occupying the tuple are removed in the same transaction.
	CreateLock(ctx context.Context, lock Lock) error
	// GetLock returns the lock for the tuple regardless of expiry.
	GetLock(ctx context.Context, guildID, eventID, participantID string, participantType ParticipantType) (Lock, error)
	// GetActiveLock returns the lock for the tuple with ExpiresAt > now.
	GetActiveLock(ctx context.Context, guildID, eventID, participantID string, participantType ParticipantType, now time.Time) (Lock, error)
	// ListActiveLocks returns every lock in the event with ExpiresAt > now.
	ListActiveLocks(ctx context.Context, guildID, eventID string, now time.Time) ([]Lock, error)
	// DeleteLock removes a lock by id.
	DeleteLock(ctx context.Context, id string) error
	// DeleteLocksForHolder removes every lock in the event owned by the
	// holder, expired or not, and returns the deleted set.
	DeleteLocksForHolder(ctx context.Context, guildID, eventID, holderID string) ([]Lock, error)
	// DeleteExpiredLocks removes every lock with ExpiresAt <= now and returns
	// the count. An empty guildID sweeps all guilds.
	DeleteExpiredLocks(ctx context.Context, guildID string, now time.Time) (int, error)
	// WatchActiveLocks opens a dedicated listener for the event's active lock
	// set. The channel carries a fresh snapshot after every lock change; it is
	// closed when the feed is lost or the context ends. The returned func
	// cancels the subscription.
	WatchActiveLocks(ctx context.Context, guildID, eventID string) (<-chan []Lock, func(), error)
}

// EventFilter narrows event listings. After is the exclusive keyset position
// in (ScheduledTime DESC, ID DESC) order.
type EventFilter struct {
	GuildID      string
	TeamLeaderID string
	Status       EventStatus
	Encounter    string
	DateFrom     *time.Time
	DateTo       *time.Time
	After        *EventKey
	Limit        int
}

// EventRepository stores scheduled events and their embedded rosters.
type EventRepository interface {
	CreateEvent(ctx context.Context, event ScheduledEvent) error
	GetEvent(ctx context.Context, guildID, id string) (ScheduledEvent, error)
	UpdateEvent(ctx context.Context, event ScheduledEvent) error
	DeleteEvent(ctx context.Context, guildID, id string) error
	ListEvents(ctx context.Context, filter EventFilter) ([]ScheduledEvent, error)
}

// ParticipantRepository stores the participant projection and exposes its
// change feed. The feed offers no replay across re-subscription; consumers
// that need a consistent view must pair it with a full read.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	DeleteParticipant(ctx context.Context, guildID string, participantType ParticipantType, id string) error
	// ListParticipants returns the collection contents. An empty guildID
	// returns all guilds.
	ListParticipants(ctx context.Context, guildID string) ([]Participant, error)
	// WatchParticipants subscribes to the collection's change feed. An empty
	// guildID watches all guilds. The channel is closed when the feed is lost
	// or the context ends.
	WatchParticipants(ctx context.Context, guildID string) (<-chan ParticipantChange, func(), error)
}
