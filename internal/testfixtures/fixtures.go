package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

var (
	lockCounter        uint64
	eventCounter       uint64
	participantCounter uint64
)

var referenceTime = time.Date(2025, time.June, 3, 20, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Lock fixtures -----------------------------

// LockOption configures the generated lock.
type LockOption func(*persistence.Lock)

// NewLock returns a deterministic lock fixture with optional overrides. The
// lock is active for thirty minutes from ReferenceTime.
func NewLock(opts ...LockOption) persistence.Lock {
	idx := atomic.AddUint64(&lockCounter, 1)
	lock := persistence.Lock{
		ID:              fmt.Sprintf("lock-%03d", idx),
		GuildID:         "guild-1",
		EventID:         "event-1",
		ParticipantID:   fmt.Sprintf("signup-%03d", idx),
		ParticipantType: persistence.ParticipantTypeProgger,
		LockedBy:        "leader-1",
		LockedByName:    "Aeris",
		LockedAt:        referenceTime,
		ExpiresAt:       referenceTime.Add(30 * time.Minute),
	}
	for _, opt := range opts {
		opt(&lock)
	}
	return lock
}

// WithLockHolder overrides the holder identity.
func WithLockHolder(id, name string) LockOption {
	return func(l *persistence.Lock) {
		l.LockedBy = id
		l.LockedByName = name
	}
}

// WithLockParticipant overrides the locked participant tuple.
func WithLockParticipant(participantType persistence.ParticipantType, id string) LockOption {
	return func(l *persistence.Lock) {
		l.ParticipantType = participantType
		l.ParticipantID = id
	}
}

// WithLockWindow overrides the acquisition and expiry instants.
func WithLockWindow(lockedAt, expiresAt time.Time) LockOption {
	return func(l *persistence.Lock) {
		l.LockedAt = lockedAt
		l.ExpiresAt = expiresAt
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventOption configures the generated event.
type EventOption func(*persistence.ScheduledEvent)

// NewEvent returns a deterministic draft event fixture with an empty
// eight-slot roster. Each call schedules the event one hour later than the
// previous one so listings have a stable order.
func NewEvent(opts ...EventOption) persistence.ScheduledEvent {
	idx := atomic.AddUint64(&eventCounter, 1)
	event := persistence.ScheduledEvent{
		ID:            fmt.Sprintf("event-%03d", idx),
		GuildID:       "guild-1",
		Name:          fmt.Sprintf("Prog Night %d", idx),
		Encounter:     "FRU",
		ScheduledTime: referenceTime.Add(time.Duration(idx) * time.Hour),
		Duration:      2 * time.Hour,
		TeamLeaderID:  "leader-1",
		Status:        persistence.EventStatusDraft,
		Roster:        EmptyRoster(),
		CreatedAt:     referenceTime,
		LastModified:  referenceTime,
		Version:       1,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventSchedule overrides the scheduled time.
func WithEventSchedule(t time.Time) EventOption {
	return func(e *persistence.ScheduledEvent) {
		e.ScheduledTime = t
	}
}

// WithEventStatus overrides the lifecycle status.
func WithEventStatus(status persistence.EventStatus) EventOption {
	return func(e *persistence.ScheduledEvent) {
		e.Status = status
	}
}

// WithEventLeader overrides the team leader.
func WithEventLeader(id string) EventOption {
	return func(e *persistence.ScheduledEvent) {
		e.TeamLeaderID = id
	}
}

// EmptyRoster returns the standard eight-slot party layout with nothing
// assigned.
func EmptyRoster() persistence.Roster {
	roles := []string{"tank", "tank", "healer", "healer", "dps", "dps", "dps", "dps"}
	party := make([]persistence.PartySlot, 0, len(roles))
	for i, role := range roles {
		party = append(party, persistence.PartySlot{
			ID:   fmt.Sprintf("slot-%d", i+1),
			Role: role,
		})
	}
	return persistence.Roster{Party: party, TotalSlots: len(roles)}
}

// -------------------------- Participant fixtures --------------------------

// ParticipantOption configures the generated participant.
type ParticipantOption func(*persistence.Participant)

// NewParticipant returns a deterministic participant fixture.
func NewParticipant(opts ...ParticipantOption) persistence.Participant {
	idx := atomic.AddUint64(&participantCounter, 1)
	participant := persistence.Participant{
		GuildID:     "guild-1",
		Type:        persistence.ParticipantTypeProgger,
		ID:          fmt.Sprintf("signup-%03d", idx),
		DiscordID:   fmt.Sprintf("discord-%03d", idx),
		Name:        fmt.Sprintf("Participant %03d", idx),
		Job:         "SGE",
		Encounter:   "FRU",
		ProgPoint:   "P3",
		IsConfirmed: true,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&participant)
	}
	return participant
}

// WithParticipantType overrides the signup pool.
func WithParticipantType(participantType persistence.ParticipantType) ParticipantOption {
	return func(p *persistence.Participant) {
		p.Type = participantType
	}
}

// WithParticipantName overrides the display name.
func WithParticipantName(name string) ParticipantOption {
	return func(p *persistence.Participant) {
		p.Name = name
	}
}

// WithParticipantJob overrides the default job.
func WithParticipantJob(job string) ParticipantOption {
	return func(p *persistence.Participant) {
		p.Job = job
	}
}
