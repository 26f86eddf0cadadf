// Package replicator maintains an in-memory mirror of the participants
// collection, fed by a single shared change-feed subscription. The mirror is
// best effort and fully rebuildable: any feed loss is healed by a complete
// reload rather than assumed to be catchable incrementally, because the feed
// offers no resume guarantee across a reconnect.
package replicator

import (
	"context"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/example/roster-draft/internal/broadcast"
	"github.com/example/roster-draft/internal/persistence"
)

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
)

// Source is the upstream collection the replicator mirrors.
type Source interface {
	ListParticipants(ctx context.Context, guildID string) ([]persistence.Participant, error)
	WatchParticipants(ctx context.Context, guildID string) (<-chan persistence.ParticipantChange, func(), error)
}

// Event is one mirror change delivered to stream consumers.
type Event struct {
	Type        persistence.ChangeType  `json:"type"`
	Participant persistence.Participant `json:"participant"`
}

// Replicator owns the only mutable copy of the participants mirror. All other
// components read it through Participants or Stream.
type Replicator struct {
	source Source
	logger *slog.Logger

	// sleep is injectable so tests can observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	mirror map[string]persistence.Participant
	hub    *broadcast.Hub[Event]
}

// Option adjusts replicator construction.
type Option func(*Replicator)

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Replicator) { r.sleep = sleep }
}

// WithStreamBuffer sets the per-consumer buffer of the broadcast channel.
func WithStreamBuffer(buffer int) Option {
	return func(r *Replicator) { r.hub = broadcast.NewHub[Event](buffer) }
}

// New builds a replicator over the given source.
func New(source Source, logger *slog.Logger, opts ...Option) *Replicator {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Replicator{
		source: source,
		logger: logger.With("component", "replicator"),
		sleep:  sleepContext,
		mirror: make(map[string]persistence.Participant),
		hub:    broadcast.NewHub[Event](16),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the connect / resync / consume loop until the context ends.
// Transport loss is never fatal: each failure restarts the whole sequence
// after min(2^attempt * 1s, 30s), and the attempt counter resets only after a
// successful resync.
func (r *Replicator) Run(ctx context.Context) error {
	attempt := 0
	for {
		r.runOnce(ctx, &attempt)
		if ctx.Err() != nil {
			return nil
		}

		delay := backoffDelay(attempt)
		attempt++
		r.logger.Warn("change feed lost, reconnecting", "attempt", attempt, "delay", delay)
		if err := r.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// runOnce performs one connect / resync / consume cycle, returning when the
// feed is lost or the context ends.
func (r *Replicator) runOnce(ctx context.Context, attempt *int) {
	// Attach the listener before the full read so a write landing between
	// the two is seen by both; reapplying it is idempotent.
	feed, cancel, err := r.source.WatchParticipants(ctx, "")
	if err != nil {
		r.logger.Error("failed to open change feed", "error", err)
		return
	}
	defer cancel()

	participants, err := r.source.ListParticipants(ctx, "")
	if err != nil {
		r.logger.Error("failed to load participants", "error", err)
		return
	}

	r.resync(participants)
	*attempt = 0
	r.logger.Info("participant mirror synced", "entries", len(participants))

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-feed:
			if !ok {
				return
			}
			r.apply(change)
		}
	}
}

// resync replaces the mirror with a fresh full read, emitting the difference
// against the previous contents so attached consumers converge without a
// restart.
func (r *Replicator) resync(participants []persistence.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[string]persistence.Participant, len(participants))
	for _, p := range participants {
		fresh[p.Key()] = p
	}

	for key, p := range fresh {
		old, ok := r.mirror[key]
		switch {
		case !ok:
			r.hub.Publish(Event{Type: persistence.ChangeAdded, Participant: p})
		case !reflect.DeepEqual(old, p):
			r.hub.Publish(Event{Type: persistence.ChangeModified, Participant: p})
		}
	}
	for key, old := range r.mirror {
		if _, ok := fresh[key]; !ok {
			r.hub.Publish(Event{Type: persistence.ChangeRemoved, Participant: old})
		}
	}

	r.mirror = fresh
}

// apply folds one feed notification into the mirror. Changes are processed
// one at a time under the lock so an added and a later removed for the same
// key can never land out of order.
func (r *Replicator) apply(change persistence.ParticipantChange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := change.Participant.Key()
	switch change.Type {
	case persistence.ChangeRemoved:
		delete(r.mirror, key)
	default:
		r.mirror[key] = change.Participant
	}
	r.hub.Publish(Event{Type: change.Type, Participant: change.Participant})
}

// Participants returns a point-in-time copy of the mirror, filtered by guild
// when guildID is non-empty, ordered by name.
func (r *Replicator) Participants(guildID string) []persistence.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]persistence.Participant, 0, len(r.mirror))
	for _, p := range r.mirror {
		if guildID != "" && p.GuildID != guildID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Stream returns a replay of the current mirror as added events followed by
// the live tail, with no entry duplicated between the two and no gap: the
// snapshot copy and the tail subscription happen under the same lock that
// serializes mirror mutation. An empty guildID streams all guilds.
func (r *Replicator) Stream(ctx context.Context, guildID string) (<-chan Event, func()) {
	r.mu.Lock()
	tail, cancelTail := r.hub.Subscribe()
	snapshot := make([]persistence.Participant, 0, len(r.mirror))
	for _, p := range r.mirror {
		if guildID != "" && p.GuildID != guildID {
			continue
		}
		snapshot = append(snapshot, p)
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key() < snapshot[j].Key() })

	out := make(chan Event)
	go func() {
		defer close(out)

		for _, p := range snapshot {
			select {
			case out <- Event{Type: persistence.ChangeAdded, Participant: p}:
			case <-ctx.Done():
				cancelTail()
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				cancelTail()
				return
			case ev, ok := <-tail:
				if !ok {
					return
				}
				if guildID != "" && ev.Participant.GuildID != guildID {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					cancelTail()
					return
				}
			}
		}
	}()

	return out, cancelTail
}

func backoffDelay(attempt int) time.Duration {
	if attempt >= 5 {
		return maxRetryDelay
	}
	delay := baseRetryDelay << attempt
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
