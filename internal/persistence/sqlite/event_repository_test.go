package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/roster-draft/internal/persistence"
	"github.com/example/roster-draft/internal/testfixtures"
)

func TestEventRepository_RoundTrip(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Events()
	ctx := context.Background()

	event := testfixtures.NewEvent()
	participant := testfixtures.NewParticipant()
	draftedAt := event.ScheduledTime.Add(-time.Hour)
	event.Roster.Party[0].AssignedParticipant = &participant
	event.Roster.Party[0].Job = participant.Job
	event.Roster.Party[0].DraftedBy = "leader-1"
	event.Roster.Party[0].DraftedAt = &draftedAt
	event.Roster.FilledSlots = 1

	require.NoError(t, repo.CreateEvent(ctx, event))

	stored, err := repo.GetEvent(ctx, event.GuildID, event.ID)
	require.NoError(t, err)

	require.Equal(t, event.Name, stored.Name)
	require.Equal(t, event.Status, stored.Status)
	require.Equal(t, event.Duration, stored.Duration)
	require.True(t, stored.ScheduledTime.Equal(event.ScheduledTime))
	require.Equal(t, event.Version, stored.Version)

	// The roster document survives the JSON column intact.
	require.Equal(t, 1, stored.Roster.FilledSlots)
	require.Len(t, stored.Roster.Party, 8)
	slot := stored.Roster.Party[0]
	require.NotNil(t, slot.AssignedParticipant)
	require.Equal(t, participant.ID, slot.AssignedParticipant.ID)
	require.Equal(t, "leader-1", slot.DraftedBy)
	require.NotNil(t, slot.DraftedAt)
	require.True(t, slot.DraftedAt.Equal(draftedAt))
}

func TestEventRepository_NotFound(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Events()
	ctx := context.Background()

	_, err := repo.GetEvent(ctx, "guild-1", "missing")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	require.ErrorIs(t, repo.UpdateEvent(ctx, testfixtures.NewEvent()), persistence.ErrNotFound)
	require.ErrorIs(t, repo.DeleteEvent(ctx, "guild-1", "missing"), persistence.ErrNotFound)
}

func TestEventRepository_GuildScope(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Events()
	ctx := context.Background()

	event := testfixtures.NewEvent()
	require.NoError(t, repo.CreateEvent(ctx, event))

	_, err := repo.GetEvent(ctx, "guild-other", event.ID)
	require.ErrorIs(t, err, persistence.ErrNotFound)

	// The same event id may exist independently in another guild.
	twin := event
	twin.GuildID = "guild-other"
	require.NoError(t, repo.CreateEvent(ctx, twin))
}

func TestEventRepository_ListEvents(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Events()
	ctx := context.Background()

	base := time.Date(2025, time.August, 1, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		event := testfixtures.NewEvent(testfixtures.WithEventSchedule(base.Add(time.Duration(i) * time.Hour)))
		event.ID = fmt.Sprintf("listed-%d", i)
		if i%2 == 1 {
			event.Status = persistence.EventStatusPublished
		}
		require.NoError(t, repo.CreateEvent(ctx, event))
	}

	t.Run("orders by scheduled time descending", func(t *testing.T) {
		events, err := repo.ListEvents(ctx, persistence.EventFilter{GuildID: "guild-1"})
		require.NoError(t, err)
		require.Len(t, events, 5)
		for i := 1; i < len(events); i++ {
			require.False(t, events[i].ScheduledTime.After(events[i-1].ScheduledTime))
		}
	})

	t.Run("keyset position excludes the cursor row", func(t *testing.T) {
		all, err := repo.ListEvents(ctx, persistence.EventFilter{GuildID: "guild-1"})
		require.NoError(t, err)

		after := persistence.EventKey{ID: all[1].ID, ScheduledTime: all[1].ScheduledTime}
		page, err := repo.ListEvents(ctx, persistence.EventFilter{GuildID: "guild-1", After: &after})
		require.NoError(t, err)
		require.Len(t, page, 3)
		require.Equal(t, all[2].ID, page[0].ID)
	})

	t.Run("filters by status", func(t *testing.T) {
		events, err := repo.ListEvents(ctx, persistence.EventFilter{
			GuildID: "guild-1",
			Status:  persistence.EventStatusPublished,
		})
		require.NoError(t, err)
		require.Len(t, events, 2)
		for _, event := range events {
			require.Equal(t, persistence.EventStatusPublished, event.Status)
		}
	})

	t.Run("filters by date window", func(t *testing.T) {
		from := base.Add(time.Hour)
		to := base.Add(3 * time.Hour)
		events, err := repo.ListEvents(ctx, persistence.EventFilter{
			GuildID:  "guild-1",
			DateFrom: &from,
			DateTo:   &to,
		})
		require.NoError(t, err)
		require.Len(t, events, 3)
	})

	t.Run("applies the limit", func(t *testing.T) {
		events, err := repo.ListEvents(ctx, persistence.EventFilter{GuildID: "guild-1", Limit: 2})
		require.NoError(t, err)
		require.Len(t, events, 2)
	})
}

func TestEventRepository_TiedScheduleTimesPageByID(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Events()
	ctx := context.Background()

	at := time.Date(2025, time.August, 2, 20, 0, 0, 0, time.UTC)
	for _, id := range []string{"tie-a", "tie-b", "tie-c"} {
		event := testfixtures.NewEvent(testfixtures.WithEventSchedule(at))
		event.ID = id
		require.NoError(t, repo.CreateEvent(ctx, event))
	}

	all, err := repo.ListEvents(ctx, persistence.EventFilter{GuildID: "guild-1"})
	require.NoError(t, err)
	require.Equal(t, []string{"tie-c", "tie-b", "tie-a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	after := persistence.EventKey{ID: "tie-c", ScheduledTime: at}
	page, err := repo.ListEvents(ctx, persistence.EventFilter{GuildID: "guild-1", After: &after})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "tie-b", page[0].ID)
}
