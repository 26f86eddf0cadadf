package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

const eventColumns = "id, guild_id, name, encounter, scheduled_time, duration_minutes, team_leader_id, status, roster_json, created_at, last_modified, version"

// EventRepository implements persistence.EventRepository using SQLite. The
// roster travels as a JSON document inside the event row, mirroring the
// embedded-document shape of the source collection.
type EventRepository struct {
	pool *ConnectionPool
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.ScheduledEvent) error {
	if event.ID == "" || event.GuildID == "" {
		return persistence.ErrConstraintViolation
	}

	rosterJSON, err := json.Marshal(event.Roster)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.GuildID, event.Name, event.Encounter,
		encodeTime(event.ScheduledTime), int64(event.Duration/time.Minute),
		event.TeamLeaderID, string(event.Status), string(rosterJSON),
		encodeTime(event.CreatedAt), encodeTime(event.LastModified), event.Version,
	)
	return mapSQLiteError(err)
}

// GetEvent retrieves an event by id within the guild scope.
func (r *EventRepository) GetEvent(ctx context.Context, guildID, id string) (persistence.ScheduledEvent, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events WHERE guild_id = ? AND id = ?`,
		guildID, id,
	)
	return scanEvent(row.Scan)
}

// UpdateEvent writes back the whole event document.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.ScheduledEvent) error {
	rosterJSON, err := json.Marshal(event.Roster)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE events
		SET name = ?, encounter = ?, scheduled_time = ?, duration_minutes = ?,
		    team_leader_id = ?, status = ?, roster_json = ?, last_modified = ?, version = ?
		WHERE guild_id = ? AND id = ?`,
		event.Name, event.Encounter, encodeTime(event.ScheduledTime), int64(event.Duration/time.Minute),
		event.TeamLeaderID, string(event.Status), string(rosterJSON),
		encodeTime(event.LastModified), event.Version,
		event.GuildID, event.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event by id within the guild scope.
func (r *EventRepository) DeleteEvent(ctx context.Context, guildID, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE guild_id = ? AND id = ?`, guildID, id)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListEvents lists events matching the filter in (scheduled_time DESC,
// id DESC) order, the stable order cursor pagination depends on.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.ScheduledEvent, error) {
	query, args := buildEventListQuery(filter)

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var events []persistence.ScheduledEvent
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return events, nil
}

func buildEventListQuery(filter persistence.EventFilter) (string, []any) {
	conditions := []string{"guild_id = ?"}
	args := []any{filter.GuildID}

	if filter.TeamLeaderID != "" {
		conditions = append(conditions, "team_leader_id = ?")
		args = append(args, filter.TeamLeaderID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Encounter != "" {
		conditions = append(conditions, "encounter = ?")
		args = append(args, filter.Encounter)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "scheduled_time >= ?")
		args = append(args, encodeTime(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "scheduled_time <= ?")
		args = append(args, encodeTime(*filter.DateTo))
	}
	if filter.After != nil {
		conditions = append(conditions, "(scheduled_time < ? OR (scheduled_time = ? AND id < ?))")
		ts := encodeTime(filter.After.ScheduledTime)
		args = append(args, ts, ts, filter.After.ID)
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY scheduled_time DESC, id DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return query, args
}

func scanEvent(scan func(dest ...any) error) (persistence.ScheduledEvent, error) {
	var event persistence.ScheduledEvent
	var status, rosterJSON string
	var scheduledTime, createdAt, lastModified, durationMinutes int64

	err := scan(
		&event.ID, &event.GuildID, &event.Name, &event.Encounter,
		&scheduledTime, &durationMinutes, &event.TeamLeaderID, &status,
		&rosterJSON, &createdAt, &lastModified, &event.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.ScheduledEvent{}, persistence.ErrNotFound
		}
		return persistence.ScheduledEvent{}, mapSQLiteError(err)
	}

	if err := json.Unmarshal([]byte(rosterJSON), &event.Roster); err != nil {
		return persistence.ScheduledEvent{}, fmt.Errorf("failed to decode roster: %w", err)
	}

	event.Status = persistence.EventStatus(status)
	event.ScheduledTime = decodeTime(scheduledTime)
	event.Duration = time.Duration(durationMinutes) * time.Minute
	event.CreatedAt = decodeTime(createdAt)
	event.LastModified = decodeTime(lastModified)
	return event, nil
}

var _ persistence.EventRepository = (*EventRepository)(nil)
