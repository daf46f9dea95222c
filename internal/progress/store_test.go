package progress_test

import (
	"testing"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/progress"
	"github.com/stretchr/testify/require"
)

func makeCatalog(ids ...string) []domain.GameDescriptor {
	games := make([]domain.GameDescriptor, 0, len(ids))
	for i, id := range ids {
		games = append(games, domain.GameDescriptor{ID: id, Index: i, CoinsReward: 5, XPReward: 10})
	}
	return games
}

func completedRecord(coins int, replayUnlocked bool) domain.ProgressRecord {
	return domain.ProgressRecord{
		Completed:        true,
		TotalCoinsEarned: coins,
		TotalLevels:      3,
		ReplayUnlocked:   replayUnlocked,
	}
}

func TestStoreGet(t *testing.T) {
	t.Parallel()

	store := progress.NewStore(makeCatalog("a", "b"))
	require.Equal(t, domain.DefaultProgressRecord(), store.Get("a"))
	require.Equal(t, domain.DefaultProgressRecord(), store.Get("unknown"))
}

func TestStoreApplyCompletion(t *testing.T) {
	t.Parallel()

	t.Run("sets completed and adds coins", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		require.True(t, store.ApplyCompletion("a", 5))

		record := store.Get("a")
		require.True(t, record.Completed)
		require.Equal(t, 5, record.TotalCoinsEarned)
	})

	t.Run("duplicate completion does not double count", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		require.True(t, store.ApplyCompletion("a", 5))
		require.False(t, store.ApplyCompletion("a", 5))

		require.Equal(t, 5, store.Get("a").TotalCoinsEarned)
	})

	t.Run("completion after seeded completion does not add coins", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Seed(map[string]domain.ProgressRecord{"a": completedRecord(12, false)}, store.Revision())

		require.False(t, store.ApplyCompletion("a", 5))
		require.Equal(t, 12, store.Get("a").TotalCoinsEarned)
	})

	t.Run("negative coins are ignored", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.ApplyCompletion("a", -3)
		require.Equal(t, 0, store.Get("a").TotalCoinsEarned)
	})

	t.Run("bumps revision", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		before := store.Revision()
		store.ApplyCompletion("a", 1)
		require.Greater(t, store.Revision(), before)
	})
}

func TestStoreReplay(t *testing.T) {
	t.Parallel()

	t.Run("grant requires completion", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		err := store.ApplyReplayGranted("a")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
		require.False(t, store.Get("a").ReplayUnlocked)
	})

	t.Run("grant is idempotent", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.ApplyCompletion("a", 5)

		require.NoError(t, store.ApplyReplayGranted("a"))
		once := store.Get("a")

		require.NoError(t, store.ApplyReplayGranted("a"))
		require.Equal(t, once, store.Get("a"))
		require.True(t, once.ReplayUnlocked)
	})

	t.Run("consume is idempotent", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.ApplyCompletion("a", 5)
		require.NoError(t, store.ApplyReplayGranted("a"))

		store.ApplyReplayConsumed("a")
		once := store.Get("a")
		store.ApplyReplayConsumed("a")

		require.Equal(t, once, store.Get("a"))
		require.False(t, once.ReplayUnlocked)
		require.True(t, once.Completed)
	})
}

func TestStoreSeed(t *testing.T) {
	t.Parallel()

	t.Run("replaces records and defaults missing catalog games", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a", "b"))
		store.Seed(map[string]domain.ProgressRecord{
			"a": completedRecord(7, true),
		}, store.Revision())

		require.Equal(t, completedRecord(7, true), store.Get("a"))
		require.Equal(t, domain.DefaultProgressRecord(), store.Get("b"))
	})

	t.Run("completion is monotonic", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a", "b"))
		store.ApplyCompletion("a", 5)

		// A reload that started before the completion and reports it as not completed
		store.Seed(map[string]domain.ProgressRecord{
			"a": domain.DefaultProgressRecord(),
		}, 0)
		require.True(t, store.Get("a").Completed)
		require.Equal(t, 5, store.Get("a").TotalCoinsEarned)

		// Even a reload that started later cannot revert the completion
		store.Seed(map[string]domain.ProgressRecord{}, store.Revision())
		require.True(t, store.Get("a").Completed)
	})

	t.Run("stale reload does not revert a paid replay", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Seed(map[string]domain.ProgressRecord{"a": completedRecord(5, false)}, store.Revision())

		reloadStartedAt := store.Revision()
		require.NoError(t, store.ApplyReplayGranted("a"))

		store.Seed(map[string]domain.ProgressRecord{"a": completedRecord(5, false)}, reloadStartedAt)
		require.True(t, store.Get("a").ReplayUnlocked)
	})

	t.Run("fresh reload is authoritative for replay state", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Seed(map[string]domain.ProgressRecord{"a": completedRecord(5, false)}, store.Revision())
		require.NoError(t, store.ApplyReplayGranted("a"))

		store.Seed(map[string]domain.ProgressRecord{"a": completedRecord(5, false)}, store.Revision())
		require.False(t, store.Get("a").ReplayUnlocked)
	})

	t.Run("server coins win when the server reports completion", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.ApplyCompletion("a", 5)
		store.Seed(map[string]domain.ProgressRecord{"a": completedRecord(9, false)}, store.Revision())
		require.Equal(t, 9, store.Get("a").TotalCoinsEarned)
		require.Equal(t, 3, store.Get("a").TotalLevels)
	})

	t.Run("replay unlocked is cleared for incomplete games", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Seed(map[string]domain.ProgressRecord{
			"a": {Completed: false, TotalLevels: 2, ReplayUnlocked: true},
		}, store.Revision())
		require.False(t, store.Get("a").ReplayUnlocked)
		require.Equal(t, 2, store.Get("a").TotalLevels)
	})

	t.Run("sanitizes levels and coins", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Seed(map[string]domain.ProgressRecord{
			"a": {Completed: true, TotalCoinsEarned: -4, TotalLevels: 0},
		}, store.Revision())
		require.Equal(t, 0, store.Get("a").TotalCoinsEarned)
		require.Equal(t, 1, store.Get("a").TotalLevels)
	})

	t.Run("records outside the catalog are kept", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Seed(map[string]domain.ProgressRecord{
			"x": completedRecord(1, false),
			"y": completedRecord(1, false),
		}, store.Revision())
		require.Equal(t, 2, store.CompletedCount())
	})
}

func TestStoreMerge(t *testing.T) {
	t.Parallel()

	t.Run("applies a point check", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.Merge("a", completedRecord(4, true), store.Revision())
		require.Equal(t, completedRecord(4, true), store.Get("a"))
	})

	t.Run("respects local changes made after the check started", func(t *testing.T) {
		t.Parallel()

		store := progress.NewStore(makeCatalog("a"))
		store.ApplyCompletion("a", 4)
		require.NoError(t, store.ApplyReplayGranted("a"))
		checkStartedAt := store.Revision()
		store.ApplyReplayConsumed("a")

		store.Merge("a", completedRecord(4, true), checkStartedAt)
		require.False(t, store.Get("a").ReplayUnlocked)
	})
}
