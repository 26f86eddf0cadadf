package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/roster-draft/internal/persistence"
)

const participantColumns = "guild_id, participant_type, participant_id, discord_id, name, job, encounter, prog_point, availability_json, is_confirmed, updated_at"

// ParticipantRepository implements persistence.ParticipantRepository using
// SQLite. Writes publish change notifications feeding the replication layer.
type ParticipantRepository struct {
	pool     *ConnectionPool
	notifier *notifier
}

// UpsertParticipant creates or replaces the projection record.
func (r *ParticipantRepository) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.GuildID == "" || participant.ID == "" || !participant.Type.IsValid() {
		return persistence.ErrConstraintViolation
	}

	availability, err := json.Marshal(participant.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}

	change := persistence.ChangeAdded

	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`
			SELECT COUNT(1) FROM participants
			WHERE guild_id = ? AND participant_type = ? AND participant_id = ?`,
			participant.GuildID, string(participant.Type), participant.ID,
		).Scan(&exists)
		if err != nil {
			return mapSQLiteError(err)
		}
		if exists > 0 {
			change = persistence.ChangeModified
		}

		_, err = tx.Exec(`
			INSERT INTO participants (`+participantColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (guild_id, participant_type, participant_id) DO UPDATE SET
				discord_id = excluded.discord_id,
				name = excluded.name,
				job = excluded.job,
				encounter = excluded.encounter,
				prog_point = excluded.prog_point,
				availability_json = excluded.availability_json,
				is_confirmed = excluded.is_confirmed,
				updated_at = excluded.updated_at`,
			participant.GuildID, string(participant.Type), participant.ID,
			participant.DiscordID, participant.Name, participant.Job,
			participant.Encounter, participant.ProgPoint, string(availability),
			boolToInt(participant.IsConfirmed), encodeTime(participant.UpdatedAt),
		)
		return mapSQLiteError(err)
	})
	if err != nil {
		return err
	}

	r.notifier.publish(storeEvent{
		collection:  collectionParticipants,
		change:      change,
		guildID:     participant.GuildID,
		participant: participant,
	})
	return nil
}

// DeleteParticipant removes the projection record.
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, guildID string, participantType persistence.ParticipantType, id string) error {
	var removed persistence.Participant

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			SELECT `+participantColumns+` FROM participants
			WHERE guild_id = ? AND participant_type = ? AND participant_id = ?`,
			guildID, string(participantType), id,
		)
		participant, err := scanParticipant(row.Scan)
		if err != nil {
			return err
		}
		removed = participant

		_, err = tx.Exec(`
			DELETE FROM participants
			WHERE guild_id = ? AND participant_type = ? AND participant_id = ?`,
			guildID, string(participantType), id,
		)
		return mapSQLiteError(err)
	})
	if err != nil {
		return err
	}

	r.notifier.publish(storeEvent{
		collection:  collectionParticipants,
		change:      persistence.ChangeRemoved,
		guildID:     guildID,
		participant: removed,
	})
	return nil
}

// ListParticipants returns the collection contents ordered by name. An empty
// guildID returns all guilds.
func (r *ParticipantRepository) ListParticipants(ctx context.Context, guildID string) ([]persistence.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants`
	var args []any
	if guildID != "" {
		query += ` WHERE guild_id = ?`
		args = append(args, guildID)
	}
	query += ` ORDER BY name ASC, participant_id ASC`

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var participants []persistence.Participant
	for rows.Next() {
		participant, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return participants, nil
}

// WatchParticipants subscribes to the participants change feed. An empty
// guildID watches all guilds. The channel is closed when the feed is lost or
// the context ends; there is no replay across re-subscription.
func (r *ParticipantRepository) WatchParticipants(ctx context.Context, guildID string) (<-chan persistence.ParticipantChange, func(), error) {
	feed, cancelFeed := r.notifier.subscribe()
	out := make(chan persistence.ParticipantChange)

	go func() {
		defer close(out)
		defer cancelFeed()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-feed:
				if !ok {
					return
				}
				if ev.collection != collectionParticipants {
					continue
				}
				if guildID != "" && ev.guildID != guildID {
					continue
				}
				select {
				case out <- persistence.ParticipantChange{Type: ev.change, Participant: ev.participant}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancelFeed, nil
}

func scanParticipant(scan func(dest ...any) error) (persistence.Participant, error) {
	var participant persistence.Participant
	var participantType, availabilityJSON string
	var isConfirmed int
	var updatedAt int64

	err := scan(
		&participant.GuildID, &participantType, &participant.ID,
		&participant.DiscordID, &participant.Name, &participant.Job,
		&participant.Encounter, &participant.ProgPoint, &availabilityJSON,
		&isConfirmed, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Participant{}, persistence.ErrNotFound
		}
		return persistence.Participant{}, mapSQLiteError(err)
	}

	if err := json.Unmarshal([]byte(availabilityJSON), &participant.Availability); err != nil {
		return persistence.Participant{}, fmt.Errorf("failed to decode availability: %w", err)
	}

	participant.Type = persistence.ParticipantType(participantType)
	participant.IsConfirmed = isConfirmed != 0
	participant.UpdatedAt = decodeTime(updatedAt)
	return participant, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

var _ persistence.ParticipantRepository = (*ParticipantRepository)(nil)
