package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/roster-draft/internal/persistence"
	"github.com/example/roster-draft/internal/testfixtures"
)

func TestLockRepository_CreateLock(t *testing.T) {
	t.Run("rejects a second active claim on the tuple", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		repo := harness.Store.Locks()
		ctx := context.Background()

		first := testfixtures.NewLock(testfixtures.WithLockWindow(time.Now(), time.Now().Add(time.Hour)))
		require.NoError(t, repo.CreateLock(ctx, first))

		second := testfixtures.NewLock(
			testfixtures.WithLockHolder("leader-b", "Briar"),
			testfixtures.WithLockParticipant(first.ParticipantType, first.ParticipantID),
			testfixtures.WithLockWindow(time.Now(), time.Now().Add(time.Hour)),
		)
		err := repo.CreateLock(ctx, second)
		require.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("an expired occupant is cleared by the new claim", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		repo := harness.Store.Locks()
		ctx := context.Background()

		stale := testfixtures.NewLock(testfixtures.WithLockWindow(
			time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour),
		))
		require.NoError(t, repo.CreateLock(ctx, stale))

		fresh := testfixtures.NewLock(
			testfixtures.WithLockHolder("leader-b", "Briar"),
			testfixtures.WithLockParticipant(stale.ParticipantType, stale.ParticipantID),
			testfixtures.WithLockWindow(time.Now(), time.Now().Add(time.Hour)),
		)
		require.NoError(t, repo.CreateLock(ctx, fresh))

		stored, err := repo.GetLock(ctx, fresh.GuildID, fresh.EventID, fresh.ParticipantID, fresh.ParticipantType)
		require.NoError(t, err)
		require.Equal(t, fresh.ID, stored.ID)
		require.Equal(t, "leader-b", stored.LockedBy)
	})

	t.Run("requires an id", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)

		lock := testfixtures.NewLock()
		lock.ID = ""
		err := harness.Store.Locks().CreateLock(context.Background(), lock)
		require.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})
}

func TestLockRepository_ActiveReads(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Locks()
	ctx := context.Background()
	now := time.Now()

	expired := testfixtures.NewLock(testfixtures.WithLockWindow(now.Add(-time.Hour), now.Add(-time.Minute)))
	active := testfixtures.NewLock(testfixtures.WithLockWindow(now, now.Add(time.Hour)))
	require.NoError(t, repo.CreateLock(ctx, expired))
	require.NoError(t, repo.CreateLock(ctx, active))

	t.Run("GetLock ignores expiry", func(t *testing.T) {
		stored, err := repo.GetLock(ctx, expired.GuildID, expired.EventID, expired.ParticipantID, expired.ParticipantType)
		require.NoError(t, err)
		require.Equal(t, expired.ID, stored.ID)
	})

	t.Run("GetActiveLock filters expiry", func(t *testing.T) {
		_, err := repo.GetActiveLock(ctx, expired.GuildID, expired.EventID, expired.ParticipantID, expired.ParticipantType, now)
		require.ErrorIs(t, err, persistence.ErrNotFound)

		stored, err := repo.GetActiveLock(ctx, active.GuildID, active.EventID, active.ParticipantID, active.ParticipantType, now)
		require.NoError(t, err)
		require.Equal(t, active.ID, stored.ID)
	})

	t.Run("ListActiveLocks returns only unexpired rows", func(t *testing.T) {
		locks, err := repo.ListActiveLocks(ctx, active.GuildID, active.EventID, now)
		require.NoError(t, err)
		require.Len(t, locks, 1)
		require.Equal(t, active.ID, locks[0].ID)
	})
}

func TestLockRepository_DeleteLocksForHolder(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Locks()
	ctx := context.Background()
	now := time.Now()

	mine := testfixtures.NewLock(testfixtures.WithLockWindow(now, now.Add(time.Hour)))
	mineToo := testfixtures.NewLock(testfixtures.WithLockWindow(now.Add(time.Second), now.Add(time.Hour)))
	theirs := testfixtures.NewLock(
		testfixtures.WithLockHolder("leader-b", "Briar"),
		testfixtures.WithLockWindow(now, now.Add(time.Hour)),
	)
	for _, lock := range []persistence.Lock{mine, mineToo, theirs} {
		require.NoError(t, repo.CreateLock(ctx, lock))
	}

	released, err := repo.DeleteLocksForHolder(ctx, mine.GuildID, mine.EventID, mine.LockedBy)
	require.NoError(t, err)
	require.Len(t, released, 2)

	remaining, err := repo.ListActiveLocks(ctx, mine.GuildID, mine.EventID, now)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "leader-b", remaining[0].LockedBy)
}

func TestLockRepository_DeleteExpiredLocks(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Locks()
	ctx := context.Background()
	now := time.Now()

	expired := testfixtures.NewLock(testfixtures.WithLockWindow(now.Add(-time.Hour), now.Add(-time.Minute)))
	boundary := testfixtures.NewLock(testfixtures.WithLockWindow(now.Add(-time.Hour), now))
	active := testfixtures.NewLock(testfixtures.WithLockWindow(now, now.Add(time.Hour)))
	for _, lock := range []persistence.Lock{expired, boundary, active} {
		require.NoError(t, repo.CreateLock(ctx, lock))
	}

	// expires_at <= now removes the boundary row too.
	count, err := repo.DeleteExpiredLocks(ctx, "", now)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = repo.DeleteExpiredLocks(ctx, "", now)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = repo.GetLock(ctx, active.GuildID, active.EventID, active.ParticipantID, active.ParticipantType)
	require.NoError(t, err)
}

func TestLockRepository_WatchActiveLocks(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	repo := harness.Store.Locks()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	seeded := testfixtures.NewLock(testfixtures.WithLockWindow(now, now.Add(time.Hour)))
	require.NoError(t, repo.CreateLock(ctx, seeded))

	updates, stop, err := repo.WatchActiveLocks(ctx, seeded.GuildID, seeded.EventID)
	require.NoError(t, err)
	defer stop()

	snapshot := receiveLocks(t, updates)
	require.Len(t, snapshot, 1)
	require.Equal(t, seeded.ID, snapshot[0].ID)

	second := testfixtures.NewLock(
		testfixtures.WithLockHolder("leader-b", "Briar"),
		testfixtures.WithLockWindow(now.Add(time.Second), now.Add(time.Hour)),
	)
	require.NoError(t, repo.CreateLock(ctx, second))
	require.Len(t, receiveLocks(t, updates), 2)

	require.NoError(t, repo.DeleteLock(ctx, seeded.ID))
	locks := receiveLocks(t, updates)
	require.Len(t, locks, 1)
	require.Equal(t, second.ID, locks[0].ID)
}

func receiveLocks(t *testing.T, updates <-chan []persistence.Lock) []persistence.Lock {
	t.Helper()
	select {
	case locks, ok := <-updates:
		require.True(t, ok, "lock stream closed unexpectedly")
		return locks
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a lock snapshot")
		return nil
	}
}
