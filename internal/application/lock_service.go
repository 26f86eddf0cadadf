package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

// DefaultLockTTL is how long a draft claim stays valid after acquisition.
const DefaultLockTTL = 30 * time.Minute

// LockRepository captures the persistence interactions needed by the service.
type LockRepository interface {
	CreateLock(ctx context.Context, lock persistence.Lock) error
	GetLock(ctx context.Context, guildID, eventID, participantID string, participantType persistence.ParticipantType) (persistence.Lock, error)
	GetActiveLock(ctx context.Context, guildID, eventID, participantID string, participantType persistence.ParticipantType, now time.Time) (persistence.Lock, error)
	ListActiveLocks(ctx context.Context, guildID, eventID string, now time.Time) ([]persistence.Lock, error)
	DeleteLock(ctx context.Context, id string) error
	DeleteLocksForHolder(ctx context.Context, guildID, eventID, holderID string) ([]persistence.Lock, error)
	DeleteExpiredLocks(ctx context.Context, guildID string, now time.Time) (int, error)
	WatchActiveLocks(ctx context.Context, guildID, eventID string) (<-chan []persistence.Lock, func(), error)
}

// LockService owns the lifecycle of draft locks: acquire, release, bulk
// release and the expiry sweep. Locks are advisory from the roster's
// perspective; assignment does not consult them.
type LockService struct {
	locks       LockRepository
	ttl         time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLockService wires dependencies for lock operations.
func NewLockService(locks LockRepository, ttl time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LockService {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LockService{
		locks:       locks,
		ttl:         ttl,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Acquire claims the participant for the holder. Re-acquiring an existing
// claim returns the original lock unchanged; the TTL is deliberately not
// extended on re-claim. A claim held by another team leader fails with
// ParticipantLockedError.
func (s *LockService) Acquire(ctx context.Context, params AcquireLockParams) (persistence.Lock, error) {
	if err := validateLockTuple(params.GuildID, params.EventID, params.ParticipantID, params.ParticipantType, params.HolderID); err != nil {
		return persistence.Lock{}, err
	}

	logger := serviceLogger(ctx, s.logger, "locks", "acquire",
		"guild_id", params.GuildID, "event_id", params.EventID,
		"participant_id", params.ParticipantID, "holder_id", params.HolderID)

	now := s.now()
	existing, err := s.locks.GetActiveLock(ctx, params.GuildID, params.EventID, params.ParticipantID, params.ParticipantType, now)
	switch {
	case err == nil:
		if existing.LockedBy == params.HolderID {
			// Idempotent re-claim; the original expiry stands.
			return existing, nil
		}
		return persistence.Lock{}, &ParticipantLockedError{
			CurrentHolder:     existing.LockedBy,
			CurrentHolderName: existing.LockedByName,
			LockExpiresAt:     existing.ExpiresAt,
		}
	case errors.Is(err, persistence.ErrNotFound):
		// No active claim; fall through to create.
	default:
		return persistence.Lock{}, fmt.Errorf("failed to look up lock: %w", err)
	}

	lock := persistence.Lock{
		ID:              s.idGenerator(),
		GuildID:         params.GuildID,
		EventID:         params.EventID,
		ParticipantID:   params.ParticipantID,
		ParticipantType: params.ParticipantType,
		LockedBy:        params.HolderID,
		LockedByName:    params.HolderName,
		LockedAt:        now,
		ExpiresAt:       now.Add(s.ttl),
	}

	if err := s.locks.CreateLock(ctx, lock); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			// Lost the create race; the store's create-if-absent semantics
			// are the real collision primitive, not our read above.
			winner, readErr := s.locks.GetActiveLock(ctx, params.GuildID, params.EventID, params.ParticipantID, params.ParticipantType, s.now())
			if readErr != nil {
				return persistence.Lock{}, fmt.Errorf("failed to read winning lock: %w", readErr)
			}
			if winner.LockedBy == params.HolderID {
				return winner, nil
			}
			return persistence.Lock{}, &ParticipantLockedError{
				CurrentHolder:     winner.LockedBy,
				CurrentHolderName: winner.LockedByName,
				LockExpiresAt:     winner.ExpiresAt,
			}
		}
		return persistence.Lock{}, fmt.Errorf("failed to create lock: %w", err)
	}

	logger.InfoContext(ctx, "participant locked", "lock_id", lock.ID, "expires_at", lock.ExpiresAt)
	return lock, nil
}

// Release removes the holder's claim. Ownership is checked before expiry so
// a caller who never owned the lock sees "held by other" even after it
// expires.
func (s *LockService) Release(ctx context.Context, params ReleaseLockParams) error {
	if err := validateLockTuple(params.GuildID, params.EventID, params.ParticipantID, params.ParticipantType, params.HolderID); err != nil {
		return err
	}

	lock, err := s.locks.GetLock(ctx, params.GuildID, params.EventID, params.ParticipantID, params.ParticipantType)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up lock: %w", err)
	}

	if lock.LockedBy != params.HolderID {
		return &LockHeldByOtherError{CurrentHolder: lock.LockedBy}
	}
	if !lock.Active(s.now()) {
		return ErrLockExpired
	}

	if err := s.locks.DeleteLock(ctx, lock.ID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete lock: %w", err)
	}

	serviceLogger(ctx, s.logger, "locks", "release",
		"guild_id", params.GuildID, "event_id", params.EventID,
		"participant_id", params.ParticipantID).InfoContext(ctx, "participant lock released", "lock_id", lock.ID)
	return nil
}

// ReleaseAll removes every lock the holder owns in the event and returns the
// released set. Used when a team leader abandons a draft session.
func (s *LockService) ReleaseAll(ctx context.Context, guildID, eventID, holderID string) ([]persistence.Lock, error) {
	vErr := &ValidationError{}
	requireField(vErr, "guildId", guildID)
	requireField(vErr, "eventId", eventID)
	requireField(vErr, "teamLeaderId", holderID)
	if vErr.HasErrors() {
		return nil, vErr
	}

	released, err := s.locks.DeleteLocksForHolder(ctx, guildID, eventID, holderID)
	if err != nil {
		return nil, fmt.Errorf("failed to release locks: %w", err)
	}

	serviceLogger(ctx, s.logger, "locks", "release_all",
		"guild_id", guildID, "event_id", eventID, "holder_id", holderID).
		InfoContext(ctx, "released all locks for holder", "count", len(released))
	return released, nil
}

// SweepExpired deletes every lock past its expiry and returns the count. It
// is idempotent and independent of the read-time expiry filter; either
// mechanism works without the other. An empty guildID sweeps all guilds.
func (s *LockService) SweepExpired(ctx context.Context, guildID string) (int, error) {
	count, err := s.locks.DeleteExpiredLocks(ctx, guildID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired locks: %w", err)
	}

	if count > 0 {
		serviceLogger(ctx, s.logger, "locks", "sweep").
			InfoContext(ctx, "swept expired locks", "count", count, "guild_id", guildID)
	}
	return count, nil
}

// ListActive returns the event's unexpired locks. Expired-but-unswept locks
// never appear here.
func (s *LockService) ListActive(ctx context.Context, guildID, eventID string) ([]persistence.Lock, error) {
	vErr := &ValidationError{}
	requireField(vErr, "guildId", guildID)
	requireField(vErr, "eventId", eventID)
	if vErr.HasErrors() {
		return nil, vErr
	}

	locks, err := s.locks.ListActiveLocks(ctx, guildID, eventID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	return locks, nil
}

// WatchActive opens a dedicated live view of the event's active lock set,
// one upstream listener per subscriber.
func (s *LockService) WatchActive(ctx context.Context, guildID, eventID string) (<-chan []persistence.Lock, func(), error) {
	vErr := &ValidationError{}
	requireField(vErr, "guildId", guildID)
	requireField(vErr, "eventId", eventID)
	if vErr.HasErrors() {
		return nil, nil, vErr
	}
	return s.locks.WatchActiveLocks(ctx, guildID, eventID)
}

func validateLockTuple(guildID, eventID, participantID string, participantType persistence.ParticipantType, holderID string) error {
	vErr := &ValidationError{}
	requireField(vErr, "guildId", guildID)
	requireField(vErr, "eventId", eventID)
	requireField(vErr, "participantId", participantID)
	requireField(vErr, "teamLeaderId", holderID)
	if !participantType.IsValid() {
		vErr.add("participantType", "participant type must be helper or progger")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func requireField(vErr *ValidationError, field, value string) {
	if value == "" {
		vErr.add(field, field+" is required")
	}
}
