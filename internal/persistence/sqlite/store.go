package sqlite

import (
	"context"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS locks (
	id               TEXT PRIMARY KEY,
	guild_id         TEXT NOT NULL,
	event_id         TEXT NOT NULL,
	participant_id   TEXT NOT NULL,
	participant_type TEXT NOT NULL CHECK (participant_type IN ('helper', 'progger')),
	locked_by        TEXT NOT NULL,
	locked_by_name   TEXT NOT NULL,
	locked_at        INTEGER NOT NULL,
	expires_at       INTEGER NOT NULL,
	UNIQUE (guild_id, event_id, participant_id, participant_type)
);

CREATE INDEX IF NOT EXISTS idx_locks_event ON locks (guild_id, event_id, expires_at);
CREATE INDEX IF NOT EXISTS idx_locks_expiry ON locks (expires_at);

CREATE TABLE IF NOT EXISTS events (
	id               TEXT NOT NULL,
	guild_id         TEXT NOT NULL,
	name             TEXT NOT NULL,
	encounter        TEXT NOT NULL,
	scheduled_time   INTEGER NOT NULL,
	duration_minutes INTEGER NOT NULL,
	team_leader_id   TEXT NOT NULL,
	status           TEXT NOT NULL,
	roster_json      TEXT NOT NULL,
	created_at       INTEGER NOT NULL,
	last_modified    INTEGER NOT NULL,
	version          INTEGER NOT NULL,
	PRIMARY KEY (guild_id, id)
);

CREATE INDEX IF NOT EXISTS idx_events_listing ON events (guild_id, scheduled_time DESC, id DESC);

CREATE TABLE IF NOT EXISTS participants (
	guild_id          TEXT NOT NULL,
	participant_type  TEXT NOT NULL CHECK (participant_type IN ('helper', 'progger')),
	participant_id    TEXT NOT NULL,
	discord_id        TEXT NOT NULL,
	name              TEXT NOT NULL,
	job               TEXT NOT NULL,
	encounter         TEXT NOT NULL DEFAULT '',
	prog_point        TEXT NOT NULL DEFAULT '',
	availability_json TEXT NOT NULL DEFAULT '[]',
	is_confirmed      INTEGER NOT NULL DEFAULT 0,
	updated_at        INTEGER NOT NULL,
	PRIMARY KEY (guild_id, participant_type, participant_id)
);
`

// Store bundles the SQLite-backed repositories behind one connection pool and
// one change notifier. Timestamps are persisted as Unix nanoseconds so range
// comparisons stay exact at any precision.
type Store struct {
	pool         *ConnectionPool
	notifier     *notifier
	locks        *LockRepository
	events       *EventRepository
	participants *ParticipantRepository
}

// Open opens the database for the given DSN and wires the repositories.
func Open(dsn string) (*Store, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}

	n := newNotifier(0)
	s := &Store{pool: pool, notifier: n}
	s.locks = &LockRepository{pool: pool, notifier: n, now: time.Now}
	s.events = &EventRepository{pool: pool}
	s.participants = &ParticipantRepository{pool: pool, notifier: n}
	return s, nil
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close disconnects change-feed subscribers and closes the database.
func (s *Store) Close() error {
	s.notifier.close()
	return s.pool.Close()
}

// Locks returns the lock repository.
func (s *Store) Locks() *LockRepository { return s.locks }

// Events returns the event repository.
func (s *Store) Events() *EventRepository { return s.events }

// Participants returns the participant repository.
func (s *Store) Participants() *ParticipantRepository { return s.participants }

func encodeTime(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func decodeTime(v int64) time.Time {
	return time.Unix(0, v).UTC()
}
