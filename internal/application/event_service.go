package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/roster-draft/internal/persistence"
)

const (
	// DefaultPageSize applies when a listing caller does not specify a limit.
	DefaultPageSize = 50
	// MaxPageSize caps caller-specified limits.
	MaxPageSize = 100
)

// EventRepository captures the persistence interactions needed by the service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event persistence.ScheduledEvent) error
	GetEvent(ctx context.Context, guildID, id string) (persistence.ScheduledEvent, error)
	UpdateEvent(ctx context.Context, event persistence.ScheduledEvent) error
	DeleteEvent(ctx context.Context, guildID, id string) error
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.ScheduledEvent, error)
}

// EventService owns scheduled-event documents and their embedded rosters.
// Every mutation bumps the event's version and refreshes lastModified; the
// version is not compared against a caller-supplied value before writing, so
// concurrent updates resolve last-write-wins.
type EventService struct {
	events      EventRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Create allocates a new draft event with an empty 8-slot roster.
func (s *EventService) Create(ctx context.Context, params CreateEventParams) (persistence.ScheduledEvent, error) {
	vErr := &ValidationError{}
	requireField(vErr, "guildId", params.GuildID)
	requireField(vErr, "name", strings.TrimSpace(params.Name))
	requireField(vErr, "encounter", strings.TrimSpace(params.Encounter))
	requireField(vErr, "teamLeaderId", params.TeamLeaderID)
	if params.ScheduledTime.IsZero() {
		vErr.add("scheduledTime", "scheduledTime is required")
	}
	if params.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}
	if vErr.HasErrors() {
		return persistence.ScheduledEvent{}, vErr
	}

	createdAt := s.now()
	event := persistence.ScheduledEvent{
		ID:            s.idGenerator(),
		GuildID:       params.GuildID,
		Name:          strings.TrimSpace(params.Name),
		Encounter:     strings.TrimSpace(params.Encounter),
		ScheduledTime: params.ScheduledTime,
		Duration:      params.Duration,
		TeamLeaderID:  params.TeamLeaderID,
		Status:        persistence.EventStatusDraft,
		Roster:        newEmptyRoster(),
		CreatedAt:     createdAt,
		LastModified:  createdAt,
		Version:       1,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return persistence.ScheduledEvent{}, fmt.Errorf("failed to create event: %w", err)
	}

	serviceLogger(ctx, s.logger, "events", "create", "guild_id", params.GuildID).
		InfoContext(ctx, "event created", "event_id", event.ID, "encounter", event.Encounter)
	return event, nil
}

// Get retrieves an event by id.
func (s *EventService) Get(ctx context.Context, guildID, eventID string) (persistence.ScheduledEvent, error) {
	event, err := s.events.GetEvent(ctx, guildID, eventID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.ScheduledEvent{}, ErrNotFound
		}
		return persistence.ScheduledEvent{}, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// List returns one page of events ordered by scheduledTime descending. An
// undecodable cursor is logged and treated as a listing from the beginning.
// The repository is asked for limit+1 rows to detect a further page without
// a count query.
func (s *EventService) List(ctx context.Context, params ListEventsParams) (ListEventsResult, error) {
	vErr := &ValidationError{}
	requireField(vErr, "guildId", params.GuildID)
	if vErr.HasErrors() {
		return ListEventsResult{}, vErr
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter := persistence.EventFilter{
		GuildID:      params.GuildID,
		TeamLeaderID: params.TeamLeaderID,
		Status:       params.Status,
		Encounter:    params.Encounter,
		DateFrom:     params.DateFrom,
		DateTo:       params.DateTo,
		Limit:        limit + 1,
	}

	if params.Cursor != "" {
		key, err := decodeEventCursor(params.Cursor)
		if err != nil {
			serviceLogger(ctx, s.logger, "events", "list", "guild_id", params.GuildID).
				WarnContext(ctx, "ignoring invalid cursor", "error", err)
		} else {
			filter.After = &key
		}
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return ListEventsResult{}, fmt.Errorf("failed to list events: %w", err)
	}

	result := ListEventsResult{Events: events}
	if len(events) > limit {
		result.Events = events[:limit]
		result.HasMore = true
		result.NextCursor = encodeEventCursor(result.Events[limit-1])
	}
	return result, nil
}

// Update field-merges the patch into the stored event, bumps the version and
// writes the document back.
func (s *EventService) Update(ctx context.Context, params UpdateEventParams) (persistence.ScheduledEvent, error) {
	event, err := s.Get(ctx, params.GuildID, params.EventID)
	if err != nil {
		return persistence.ScheduledEvent{}, err
	}

	vErr := &ValidationError{}
	patch := params.Patch
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			vErr.add("name", "name is required")
		} else {
			event.Name = strings.TrimSpace(*patch.Name)
		}
	}
	if patch.Encounter != nil {
		if strings.TrimSpace(*patch.Encounter) == "" {
			vErr.add("encounter", "encounter is required")
		} else {
			event.Encounter = strings.TrimSpace(*patch.Encounter)
		}
	}
	if patch.ScheduledTime != nil {
		if patch.ScheduledTime.IsZero() {
			vErr.add("scheduledTime", "scheduledTime is required")
		} else {
			event.ScheduledTime = *patch.ScheduledTime
		}
	}
	if patch.Duration != nil {
		if *patch.Duration <= 0 {
			vErr.add("duration", "duration must be positive")
		} else {
			event.Duration = *patch.Duration
		}
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			vErr.add("status", "unknown status")
		} else {
			event.Status = *patch.Status
		}
	}
	if vErr.HasErrors() {
		return persistence.ScheduledEvent{}, vErr
	}

	return s.write(ctx, event)
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, guildID, eventID string) error {
	if err := s.events.DeleteEvent(ctx, guildID, eventID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}

	serviceLogger(ctx, s.logger, "events", "delete", "guild_id", guildID).
		InfoContext(ctx, "event deleted", "event_id", eventID)
	return nil
}

// Assign places a participant in a roster slot and recomputes filledSlots.
// Holding a draft lock on the participant is not verified here; the lock is
// advisory at this layer.
func (s *EventService) Assign(ctx context.Context, params AssignSlotParams) (persistence.ScheduledEvent, error) {
	vErr := &ValidationError{}
	requireField(vErr, "slotId", params.SlotID)
	requireField(vErr, "participantId", params.Participant.ID)
	if !params.Participant.Type.IsValid() {
		vErr.add("participantType", "participant type must be helper or progger")
	}
	if vErr.HasErrors() {
		return persistence.ScheduledEvent{}, vErr
	}

	event, err := s.Get(ctx, params.GuildID, params.EventID)
	if err != nil {
		return persistence.ScheduledEvent{}, err
	}

	idx := findSlot(event.Roster, params.SlotID)
	if idx < 0 {
		vErr.add("slotId", "slot does not exist")
		return persistence.ScheduledEvent{}, vErr
	}

	participant := params.Participant
	slot := &event.Roster.Party[idx]
	slot.AssignedParticipant = &participant
	if params.Job != "" {
		slot.Job = params.Job
	} else {
		slot.Job = participant.Job
	}
	slot.IsHelperSlot = participant.Type == persistence.ParticipantTypeHelper
	slot.DraftedBy = params.DraftedBy
	draftedAt := s.now()
	slot.DraftedAt = &draftedAt

	recomputeFilledSlots(&event.Roster)
	return s.write(ctx, event)
}

// Unassign clears a roster slot and recomputes filledSlots.
func (s *EventService) Unassign(ctx context.Context, params UnassignSlotParams) (persistence.ScheduledEvent, error) {
	vErr := &ValidationError{}
	requireField(vErr, "slotId", params.SlotID)
	if vErr.HasErrors() {
		return persistence.ScheduledEvent{}, vErr
	}

	event, err := s.Get(ctx, params.GuildID, params.EventID)
	if err != nil {
		return persistence.ScheduledEvent{}, err
	}

	idx := findSlot(event.Roster, params.SlotID)
	if idx < 0 {
		vErr.add("slotId", "slot does not exist")
		return persistence.ScheduledEvent{}, vErr
	}

	slot := &event.Roster.Party[idx]
	slot.AssignedParticipant = nil
	slot.Job = ""
	slot.IsHelperSlot = false
	slot.DraftedBy = ""
	slot.DraftedAt = nil

	recomputeFilledSlots(&event.Roster)
	return s.write(ctx, event)
}

// write applies the shared mutation bookkeeping and persists the document.
func (s *EventService) write(ctx context.Context, event persistence.ScheduledEvent) (persistence.ScheduledEvent, error) {
	event.LastModified = s.now()
	event.Version++

	if err := s.events.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.ScheduledEvent{}, ErrNotFound
		}
		return persistence.ScheduledEvent{}, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}
