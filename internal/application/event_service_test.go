package application

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/example/roster-draft/internal/persistence"
	"github.com/example/roster-draft/internal/testfixtures"
)

type eventRepoStub struct {
	events map[string]persistence.ScheduledEvent

	listErr error
}

func newEventRepoStub() *eventRepoStub {
	return &eventRepoStub{events: make(map[string]persistence.ScheduledEvent)}
}

func eventMapKey(guildID, id string) string {
	return guildID + "|" + id
}

func (r *eventRepoStub) CreateEvent(ctx context.Context, event persistence.ScheduledEvent) error {
	key := eventMapKey(event.GuildID, event.ID)
	if _, ok := r.events[key]; ok {
		return persistence.ErrDuplicate
	}
	r.events[key] = event
	return nil
}

func (r *eventRepoStub) GetEvent(ctx context.Context, guildID, id string) (persistence.ScheduledEvent, error) {
	event, ok := r.events[eventMapKey(guildID, id)]
	if !ok {
		return persistence.ScheduledEvent{}, persistence.ErrNotFound
	}
	return event, nil
}

func (r *eventRepoStub) UpdateEvent(ctx context.Context, event persistence.ScheduledEvent) error {
	key := eventMapKey(event.GuildID, event.ID)
	if _, ok := r.events[key]; !ok {
		return persistence.ErrNotFound
	}
	r.events[key] = event
	return nil
}

func (r *eventRepoStub) DeleteEvent(ctx context.Context, guildID, id string) error {
	key := eventMapKey(guildID, id)
	if _, ok := r.events[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.events, key)
	return nil
}

func (r *eventRepoStub) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.ScheduledEvent, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}

	matched := make([]persistence.ScheduledEvent, 0, len(r.events))
	for _, event := range r.events {
		if event.GuildID != filter.GuildID {
			continue
		}
		if filter.TeamLeaderID != "" && event.TeamLeaderID != filter.TeamLeaderID {
			continue
		}
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		if filter.Encounter != "" && event.Encounter != filter.Encounter {
			continue
		}
		matched = append(matched, event)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScheduledTime.Equal(matched[j].ScheduledTime) {
			return matched[i].ScheduledTime.After(matched[j].ScheduledTime)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.After != nil {
		cut := 0
		for i, event := range matched {
			if event.ScheduledTime.Before(filter.After.ScheduledTime) ||
				(event.ScheduledTime.Equal(filter.After.ScheduledTime) && event.ID < filter.After.ID) {
				cut = i
				break
			}
			cut = i + 1
		}
		matched = matched[cut:]
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func newTestEventService(repo *eventRepoStub, clock *testfixtures.Clock) *EventService {
	ids := testfixtures.NewIDGenerator("event")
	return NewEventService(repo, ids.NextFunc(), clock.NowFunc(), nil)
}

func createParams(name string) CreateEventParams {
	return CreateEventParams{
		GuildID:       "guild-1",
		Name:          name,
		Encounter:     "FRU",
		ScheduledTime: testfixtures.ReferenceTime().Add(24 * time.Hour),
		Duration:      2 * time.Hour,
		TeamLeaderID:  "leader-a",
	}
}

func TestEventService_Create(t *testing.T) {
	t.Run("starts as a draft with an empty eight slot roster", func(t *testing.T) {
		svc := newTestEventService(newEventRepoStub(), testfixtures.NewClock(time.Time{}))

		event, err := svc.Create(context.Background(), createParams("Prog Night"))
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if event.Status != persistence.EventStatusDraft {
			t.Fatalf("expected draft status, got %q", event.Status)
		}
		if event.Version != 1 {
			t.Fatalf("expected version 1, got %d", event.Version)
		}
		if got := len(event.Roster.Party); got != 8 {
			t.Fatalf("expected 8 slots, got %d", got)
		}
		if event.Roster.TotalSlots != 8 || event.Roster.FilledSlots != 0 {
			t.Fatalf("unexpected roster counters: %+v", event.Roster)
		}

		roles := map[string]int{}
		for _, slot := range event.Roster.Party {
			roles[slot.Role]++
			if slot.AssignedParticipant != nil {
				t.Fatalf("slot %s should start empty", slot.ID)
			}
		}
		if roles["tank"] != 2 || roles["healer"] != 2 || roles["dps"] != 4 {
			t.Fatalf("unexpected party shape: %v", roles)
		}
	})

	t.Run("collects all missing fields in one error", func(t *testing.T) {
		svc := newTestEventService(newEventRepoStub(), testfixtures.NewClock(time.Time{}))

		_, err := svc.Create(context.Background(), CreateEventParams{GuildID: "guild-1"})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "encounter", "teamLeaderId", "scheduledTime", "duration"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestEventService_Update(t *testing.T) {
	t.Run("merges only the provided fields and bumps the version", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		repo := newEventRepoStub()
		svc := newTestEventService(repo, clock)

		created, err := svc.Create(context.Background(), createParams("Prog Night"))
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		clock.Advance(time.Minute)
		status := persistence.EventStatusPublished
		updated, err := svc.Update(context.Background(), UpdateEventParams{
			GuildID: "guild-1",
			EventID: created.ID,
			Patch:   EventPatch{Status: &status},
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if updated.Status != persistence.EventStatusPublished {
			t.Fatalf("expected published status, got %q", updated.Status)
		}
		if updated.Name != created.Name || updated.Encounter != created.Encounter {
			t.Fatal("untouched fields must survive the merge")
		}
		if updated.Version != created.Version+1 {
			t.Fatalf("expected version %d, got %d", created.Version+1, updated.Version)
		}
		if !updated.LastModified.After(created.LastModified) {
			t.Fatal("expected lastModified to move forward")
		}
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		repo := newEventRepoStub()
		svc := newTestEventService(repo, testfixtures.NewClock(time.Time{}))

		created, err := svc.Create(context.Background(), createParams("Prog Night"))
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		bogus := persistence.EventStatus("archived")
		_, err = svc.Update(context.Background(), UpdateEventParams{
			GuildID: "guild-1",
			EventID: created.ID,
			Patch:   EventPatch{Status: &bogus},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("concurrent updates resolve last write wins", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		repo := newEventRepoStub()
		svc := newTestEventService(repo, clock)

		created, err := svc.Create(context.Background(), createParams("Prog Night"))
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		// Two writers patch from the same base version; neither is rejected.
		nameA := "Week 4 Prog"
		if _, err := svc.Update(context.Background(), UpdateEventParams{
			GuildID: "guild-1", EventID: created.ID, Patch: EventPatch{Name: &nameA},
		}); err != nil {
			t.Fatalf("first update failed: %v", err)
		}

		nameB := "Week 4 Reclear"
		final, err := svc.Update(context.Background(), UpdateEventParams{
			GuildID: "guild-1", EventID: created.ID, Patch: EventPatch{Name: &nameB},
		})
		if err != nil {
			t.Fatalf("second update failed: %v", err)
		}

		if final.Name != nameB {
			t.Fatalf("expected the later write to win, got %q", final.Name)
		}
		if final.Version != created.Version+2 {
			t.Fatalf("expected version %d, got %d", created.Version+2, final.Version)
		}
	})

	t.Run("unknown event yields ErrNotFound", func(t *testing.T) {
		svc := newTestEventService(newEventRepoStub(), testfixtures.NewClock(time.Time{}))

		name := "anything"
		_, err := svc.Update(context.Background(), UpdateEventParams{
			GuildID: "guild-1",
			EventID: "missing",
			Patch:   EventPatch{Name: &name},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEventService_AssignAndUnassign(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	repo := newEventRepoStub()
	svc := newTestEventService(repo, clock)

	created, err := svc.Create(context.Background(), createParams("Prog Night"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	participant := testfixtures.NewParticipant(testfixtures.WithParticipantJob("WAR"))

	t.Run("assignment fills the slot and the counter", func(t *testing.T) {
		updated, err := svc.Assign(context.Background(), AssignSlotParams{
			GuildID:     "guild-1",
			EventID:     created.ID,
			SlotID:      "slot-1",
			Participant: participant,
			DraftedBy:   "leader-a",
		})
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}

		slot := updated.Roster.Party[0]
		if slot.AssignedParticipant == nil || slot.AssignedParticipant.ID != participant.ID {
			t.Fatalf("expected %s in slot-1, got %+v", participant.ID, slot.AssignedParticipant)
		}
		if slot.Job != "WAR" {
			t.Fatalf("expected the participant's job, got %q", slot.Job)
		}
		if slot.DraftedBy != "leader-a" || slot.DraftedAt == nil {
			t.Fatalf("expected draft attribution, got %+v", slot)
		}
		if updated.Roster.FilledSlots != 1 {
			t.Fatalf("expected 1 filled slot, got %d", updated.Roster.FilledSlots)
		}
	})

	t.Run("an explicit job overrides the participant default", func(t *testing.T) {
		updated, err := svc.Assign(context.Background(), AssignSlotParams{
			GuildID:     "guild-1",
			EventID:     created.ID,
			SlotID:      "slot-2",
			Participant: testfixtures.NewParticipant(testfixtures.WithParticipantJob("GNB")),
			Job:         "DRK",
			DraftedBy:   "leader-a",
		})
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if got := updated.Roster.Party[1].Job; got != "DRK" {
			t.Fatalf("expected DRK, got %q", got)
		}
	})

	t.Run("helpers mark the slot as a helper slot", func(t *testing.T) {
		helper := testfixtures.NewParticipant(testfixtures.WithParticipantType(persistence.ParticipantTypeHelper))
		updated, err := svc.Assign(context.Background(), AssignSlotParams{
			GuildID:     "guild-1",
			EventID:     created.ID,
			SlotID:      "slot-3",
			Participant: helper,
			DraftedBy:   "leader-a",
		})
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if !updated.Roster.Party[2].IsHelperSlot {
			t.Fatal("expected slot-3 to be flagged as a helper slot")
		}
	})

	t.Run("unknown slot is a validation error", func(t *testing.T) {
		_, err := svc.Assign(context.Background(), AssignSlotParams{
			GuildID:     "guild-1",
			EventID:     created.ID,
			SlotID:      "slot-99",
			Participant: participant,
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unassign empties the slot and recomputes the counter", func(t *testing.T) {
		updated, err := svc.Unassign(context.Background(), UnassignSlotParams{
			GuildID: "guild-1",
			EventID: created.ID,
			SlotID:  "slot-1",
		})
		if err != nil {
			t.Fatalf("unassign failed: %v", err)
		}

		slot := updated.Roster.Party[0]
		if slot.AssignedParticipant != nil || slot.DraftedBy != "" || slot.DraftedAt != nil {
			t.Fatalf("expected slot-1 to be cleared, got %+v", slot)
		}
		if slot.Job != "" {
			t.Fatalf("expected no job restriction on the empty slot, got %q", slot.Job)
		}
		if updated.Roster.FilledSlots != 2 {
			t.Fatalf("expected 2 filled slots, got %d", updated.Roster.FilledSlots)
		}
	})
}

func TestEventService_List(t *testing.T) {
	seed := func(t *testing.T, svc *EventService, count int) []persistence.ScheduledEvent {
		t.Helper()
		created := make([]persistence.ScheduledEvent, 0, count)
		for i := 0; i < count; i++ {
			params := createParams("Night")
			params.ScheduledTime = testfixtures.ReferenceTime().Add(time.Duration(i) * time.Hour)
			event, err := svc.Create(context.Background(), params)
			if err != nil {
				t.Fatalf("seed create failed: %v", err)
			}
			created = append(created, event)
		}
		return created
	}

	t.Run("pages walk the full set without overlap", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		svc := newTestEventService(newEventRepoStub(), clock)
		seed(t, svc, 5)

		seen := map[string]bool{}
		cursor := ""
		pages := 0
		for {
			result, err := svc.List(context.Background(), ListEventsParams{
				GuildID: "guild-1",
				Limit:   2,
				Cursor:  cursor,
			})
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			for _, event := range result.Events {
				if seen[event.ID] {
					t.Fatalf("event %s appeared on two pages", event.ID)
				}
				seen[event.ID] = true
			}
			pages++
			if !result.HasMore {
				break
			}
			if result.NextCursor == "" {
				t.Fatal("hasMore without a cursor")
			}
			cursor = result.NextCursor
		}

		if len(seen) != 5 {
			t.Fatalf("expected all 5 events across pages, got %d", len(seen))
		}
		if pages != 3 {
			t.Fatalf("expected 3 pages, got %d", pages)
		}
	})

	t.Run("orders by scheduled time descending", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		svc := newTestEventService(newEventRepoStub(), clock)
		seed(t, svc, 3)

		result, err := svc.List(context.Background(), ListEventsParams{GuildID: "guild-1"})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		for i := 1; i < len(result.Events); i++ {
			if result.Events[i].ScheduledTime.After(result.Events[i-1].ScheduledTime) {
				t.Fatalf("events out of order at index %d", i)
			}
		}
		if result.HasMore {
			t.Fatal("expected a single page")
		}
	})

	t.Run("an invalid cursor falls back to the first page", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		svc := newTestEventService(newEventRepoStub(), clock)
		seed(t, svc, 3)

		result, err := svc.List(context.Background(), ListEventsParams{
			GuildID: "guild-1",
			Cursor:  "not-base64!!",
		})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(result.Events) != 3 {
			t.Fatalf("expected the full first page, got %d events", len(result.Events))
		}
	})

	t.Run("caps the limit", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		repo := newEventRepoStub()
		svc := newTestEventService(repo, clock)
		seed(t, svc, 1)

		result, err := svc.List(context.Background(), ListEventsParams{
			GuildID: "guild-1",
			Limit:   MaxPageSize * 10,
		})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(result.Events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(result.Events))
		}
	})

	t.Run("filters by team leader", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		svc := newTestEventService(newEventRepoStub(), clock)
		seed(t, svc, 2)

		params := createParams("Other Team")
		params.TeamLeaderID = "leader-b"
		if _, err := svc.Create(context.Background(), params); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		result, err := svc.List(context.Background(), ListEventsParams{
			GuildID:      "guild-1",
			TeamLeaderID: "leader-b",
		})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(result.Events) != 1 || result.Events[0].TeamLeaderID != "leader-b" {
			t.Fatalf("expected only leader-b's event, got %v", result.Events)
		}
	})
}

func TestEventService_Delete(t *testing.T) {
	svc := newTestEventService(newEventRepoStub(), testfixtures.NewClock(time.Time{}))

	created, err := svc.Create(context.Background(), createParams("Prog Night"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.Delete(context.Background(), "guild-1", created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Delete(context.Background(), "guild-1", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
