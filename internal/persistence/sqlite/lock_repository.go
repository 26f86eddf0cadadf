package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

const lockColumns = "id, guild_id, event_id, participant_id, participant_type, locked_by, locked_by_name, locked_at, expires_at"

// LockRepository implements persistence.LockRepository using SQLite. The
// UNIQUE index over (guild_id, event_id, participant_id, participant_type) is
// the create-if-absent primitive that resolves concurrent acquires.
type LockRepository struct {
	pool     *ConnectionPool
	notifier *notifier
	now      func() time.Time
}

// CreateLock inserts the lock, clearing any expired row that still occupies
// the tuple. An active occupant surfaces as persistence.ErrDuplicate.
func (r *LockRepository) CreateLock(ctx context.Context, lock persistence.Lock) error {
	if lock.ID == "" {
		return persistence.ErrConstraintViolation
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			DELETE FROM locks
			WHERE guild_id = ? AND event_id = ? AND participant_id = ? AND participant_type = ? AND expires_at <= ?`,
			lock.GuildID, lock.EventID, lock.ParticipantID, string(lock.ParticipantType), encodeTime(lock.LockedAt),
		)
		if err != nil {
			return mapSQLiteError(err)
		}

		_, err = tx.Exec(`
			INSERT INTO locks (`+lockColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lock.ID, lock.GuildID, lock.EventID, lock.ParticipantID, string(lock.ParticipantType),
			lock.LockedBy, lock.LockedByName, encodeTime(lock.LockedAt), encodeTime(lock.ExpiresAt),
		)
		return mapSQLiteError(err)
	})
	if err != nil {
		return err
	}

	r.notifier.publish(storeEvent{
		collection: collectionLocks,
		change:     persistence.ChangeAdded,
		guildID:    lock.GuildID,
		eventID:    lock.EventID,
		lock:       lock,
	})
	return nil
}

// GetLock returns the lock for the tuple regardless of expiry.
func (r *LockRepository) GetLock(ctx context.Context, guildID, eventID, participantID string, participantType persistence.ParticipantType) (persistence.Lock, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+lockColumns+` FROM locks
		WHERE guild_id = ? AND event_id = ? AND participant_id = ? AND participant_type = ?`,
		guildID, eventID, participantID, string(participantType),
	)
	return scanLock(row)
}

// GetActiveLock returns the lock for the tuple when it has not yet expired.
func (r *LockRepository) GetActiveLock(ctx context.Context, guildID, eventID, participantID string, participantType persistence.ParticipantType, now time.Time) (persistence.Lock, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+lockColumns+` FROM locks
		WHERE guild_id = ? AND event_id = ? AND participant_id = ? AND participant_type = ? AND expires_at > ?`,
		guildID, eventID, participantID, string(participantType), encodeTime(now),
	)
	return scanLock(row)
}

// ListActiveLocks returns every unexpired lock in the event, oldest first.
func (r *LockRepository) ListActiveLocks(ctx context.Context, guildID, eventID string, now time.Time) ([]persistence.Lock, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+lockColumns+` FROM locks
		WHERE guild_id = ? AND event_id = ? AND expires_at > ?
		ORDER BY locked_at ASC, id ASC`,
		guildID, eventID, encodeTime(now),
	)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	return collectLocks(rows)
}

// DeleteLock removes a lock by id.
func (r *LockRepository) DeleteLock(ctx context.Context, id string) error {
	var deleted persistence.Lock

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+lockColumns+` FROM locks WHERE id = ?`, id)
		lock, err := scanLock(row)
		if err != nil {
			return err
		}
		deleted = lock

		if _, err := tx.Exec(`DELETE FROM locks WHERE id = ?`, id); err != nil {
			return mapSQLiteError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.notifier.publish(storeEvent{
		collection: collectionLocks,
		change:     persistence.ChangeRemoved,
		guildID:    deleted.GuildID,
		eventID:    deleted.EventID,
		lock:       deleted,
	})
	return nil
}

// DeleteLocksForHolder removes every lock in the event owned by the holder
// and returns what was removed.
func (r *LockRepository) DeleteLocksForHolder(ctx context.Context, guildID, eventID, holderID string) ([]persistence.Lock, error) {
	var deleted []persistence.Lock

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT `+lockColumns+` FROM locks
			WHERE guild_id = ? AND event_id = ? AND locked_by = ?
			ORDER BY locked_at ASC, id ASC`,
			guildID, eventID, holderID,
		)
		if err != nil {
			return mapSQLiteError(err)
		}
		defer rows.Close()

		deleted, err = collectLocks(rows)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`DELETE FROM locks WHERE guild_id = ? AND event_id = ? AND locked_by = ?`,
			guildID, eventID, holderID)
		return mapSQLiteError(err)
	})
	if err != nil {
		return nil, err
	}

	for _, lock := range deleted {
		r.notifier.publish(storeEvent{
			collection: collectionLocks,
			change:     persistence.ChangeRemoved,
			guildID:    lock.GuildID,
			eventID:    lock.EventID,
			lock:       lock,
		})
	}
	return deleted, nil
}

// DeleteExpiredLocks removes every lock with expires_at <= now. An empty
// guildID sweeps all guilds.
func (r *LockRepository) DeleteExpiredLocks(ctx context.Context, guildID string, now time.Time) (int, error) {
	var expired []persistence.Lock

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + lockColumns + ` FROM locks WHERE expires_at <= ?`
		args := []any{encodeTime(now)}
		if guildID != "" {
			query += ` AND guild_id = ?`
			args = append(args, guildID)
		}

		rows, err := tx.Query(query, args...)
		if err != nil {
			return mapSQLiteError(err)
		}
		defer rows.Close()

		expired, err = collectLocks(rows)
		if err != nil {
			return err
		}

		del := `DELETE FROM locks WHERE expires_at <= ?`
		if guildID != "" {
			del += ` AND guild_id = ?`
		}
		_, err = tx.Exec(del, args...)
		return mapSQLiteError(err)
	})
	if err != nil {
		return 0, err
	}

	for _, lock := range expired {
		r.notifier.publish(storeEvent{
			collection: collectionLocks,
			change:     persistence.ChangeRemoved,
			guildID:    lock.GuildID,
			eventID:    lock.EventID,
			lock:       lock,
		})
	}
	return len(expired), nil
}

// WatchActiveLocks opens a dedicated listener over the event's active lock
// set. Every lock change in the event triggers a fresh snapshot query; the
// first snapshot is emitted immediately on subscribe. The channel is closed
// when the feed is lost or the context ends.
func (r *LockRepository) WatchActiveLocks(ctx context.Context, guildID, eventID string) (<-chan []persistence.Lock, func(), error) {
	snapshot, err := r.ListActiveLocks(ctx, guildID, eventID, r.now())
	if err != nil {
		return nil, nil, err
	}

	feed, cancelFeed := r.notifier.subscribe()
	out := make(chan []persistence.Lock, 1)
	out <- snapshot

	go func() {
		defer close(out)
		defer cancelFeed()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-feed:
				if !ok {
					// Feed lost; the subscriber must reconnect.
					return
				}
				if ev.collection != collectionLocks || ev.guildID != guildID || ev.eventID != eventID {
					continue
				}
				locks, err := r.ListActiveLocks(ctx, guildID, eventID, r.now())
				if err != nil {
					return
				}
				select {
				case out <- locks:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancelFeed, nil
}

func scanLock(row *sql.Row) (persistence.Lock, error) {
	var lock persistence.Lock
	var participantType string
	var lockedAt, expiresAt int64

	err := row.Scan(
		&lock.ID, &lock.GuildID, &lock.EventID, &lock.ParticipantID, &participantType,
		&lock.LockedBy, &lock.LockedByName, &lockedAt, &expiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Lock{}, persistence.ErrNotFound
		}
		return persistence.Lock{}, mapSQLiteError(err)
	}

	lock.ParticipantType = persistence.ParticipantType(participantType)
	lock.LockedAt = decodeTime(lockedAt)
	lock.ExpiresAt = decodeTime(expiresAt)
	return lock, nil
}

func collectLocks(rows *sql.Rows) ([]persistence.Lock, error) {
	var locks []persistence.Lock

	for rows.Next() {
		var lock persistence.Lock
		var participantType string
		var lockedAt, expiresAt int64

		err := rows.Scan(
			&lock.ID, &lock.GuildID, &lock.EventID, &lock.ParticipantID, &participantType,
			&lock.LockedBy, &lock.LockedByName, &lockedAt, &expiresAt,
		)
		if err != nil {
			return nil, mapSQLiteError(err)
		}

		lock.ParticipantType = persistence.ParticipantType(participantType)
		lock.LockedAt = decodeTime(lockedAt)
		lock.ExpiresAt = decodeTime(expiresAt)
		locks = append(locks, lock)
	}

	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return locks, nil
}

var _ persistence.LockRepository = (*LockRepository)(nil)
