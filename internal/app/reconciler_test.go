package app_test

import (
	"testing"
	"time"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/stretchr/testify/require"
)

func completedEvent(gameID string, coins int) realtime.Event {
	return realtime.Event{
		Type:          realtime.EventGameCompleted,
		GameCompleted: &realtime.GameCompleted{GameID: gameID, CoinsEarned: coins},
	}
}

func replayedEvent(gameID string, unlocked bool) realtime.Event {
	return realtime.Event{
		Type:         realtime.EventGameReplayed,
		GameReplayed: &realtime.GameReplayed{GameID: gameID, ReplayUnlocked: unlocked},
	}
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()

	first := gameID(mathKey, 1)

	t.Run("completion is applied before the debounced reload", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		session.HandleEvent(t.Context(), completedEvent(first, 5))

		// Optimistic update is visible immediately
		requireVerdict(t, session, first, domain.VerdictCompletedLocked)
		requireVerdict(t, session, gameID(mathKey, 2), domain.VerdictUnlockedCurrentlyActive)
		require.Equal(t, 1, h.clock.Pending())
		require.Equal(t, 1, h.api.batchCallCount())

		h.api.set(first, domain.ProgressRecord{Completed: true, TotalCoinsEarned: 5, TotalLevels: 4})
		h.clock.Advance(time.Second)
		require.Equal(t, 2, h.api.batchCallCount())

		game, err := session.Verdict(t.Context(), first)
		require.NoError(t, err)
		require.Equal(t, 5, game.CoinsEarned)
	})

	t.Run("duplicate completion does not double count", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		session.HandleEvent(t.Context(), completedEvent(first, 5))
		session.HandleEvent(t.Context(), completedEvent(first, 5))

		game, err := session.Verdict(t.Context(), first)
		require.NoError(t, err)
		require.Equal(t, 5, game.CoinsEarned)

		// Both events coalesce into a single reload
		require.Equal(t, 1, h.clock.Pending())
		h.clock.Advance(time.Second)
		require.Equal(t, 2, h.api.batchCallCount())
	})

	t.Run("partial completion only schedules a reload", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		fullyCompleted := false
		session.HandleEvent(t.Context(), realtime.Event{
			Type: realtime.EventGameCompleted,
			GameCompleted: &realtime.GameCompleted{
				GameID:         first,
				CoinsEarned:    2,
				FullyCompleted: &fullyCompleted,
			},
		})

		requireVerdict(t, session, first, domain.VerdictUnlockedCurrentlyActive)
		require.Equal(t, 1, h.clock.Pending())
	})

	t.Run("completion carries the new balance", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		balance := 42
		session.HandleEvent(t.Context(), realtime.Event{
			Type: realtime.EventGameCompleted,
			GameCompleted: &realtime.GameCompleted{
				GameID:      first,
				CoinsEarned: 5,
				NewBalance:  &balance,
			},
		})

		got, _ := h.wallet.state()
		require.Equal(t, 42, got)
	})

	t.Run("completion after a stale reload response stays completed", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		session.HandleEvent(t.Context(), completedEvent(first, 5))

		// The backend still reports the game as not completed
		h.api.set(first, domain.DefaultProgressRecord())
		h.clock.Advance(time.Second)

		requireVerdict(t, session, first, domain.VerdictCompletedLocked)
	})

	t.Run("consumed replay is applied and point-checked", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.api.set(first, domain.ProgressRecord{Completed: true, TotalCoinsEarned: 5, TotalLevels: 1, ReplayUnlocked: true})
		session := navigatedSession(t, h)
		requireVerdict(t, session, first, domain.VerdictCompletedReplayable)

		// The backend disagrees with the event, the point-check wins
		h.api.set(first, domain.ProgressRecord{Completed: true, TotalCoinsEarned: 9, TotalLevels: 1, ReplayUnlocked: false})
		session.HandleEvent(t.Context(), replayedEvent(first, false))

		requireVerdict(t, session, first, domain.VerdictCompletedLocked)
		require.Equal(t, 1, h.clock.Pending())

		require.Eventually(t, func() bool {
			game, err := session.Verdict(t.Context(), first)
			return err == nil && game.CoinsEarned == 9
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("duplicate replay confirmation is idempotent", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.api.set(first, domain.ProgressRecord{Completed: true, TotalCoinsEarned: 5, TotalLevels: 1})
		session := navigatedSession(t, h)

		result := session.RequestReplay(t.Context(), first)
		require.True(t, result.Confirmed())

		session.HandleEvent(t.Context(), replayedEvent(first, true))
		requireVerdict(t, session, first, domain.VerdictCompletedReplayable)
	})

	t.Run("events for other catalogs are ignored", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		session.HandleEvent(t.Context(), completedEvent(gameID(readingKey, 1), 5))
		session.HandleEvent(t.Context(), replayedEvent(gameID(readingKey, 1), false))

		require.Equal(t, 0, h.clock.Pending())
		view, err := session.View(t.Context())
		require.NoError(t, err)
		require.Equal(t, 0, view.Stats.CompletedGames)
	})

	t.Run("events before navigation are ignored", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := h.session(t)

		session.HandleEvent(t.Context(), completedEvent(first, 5))
		session.HandleEvent(t.Context(), realtime.Event{Type: realtime.EventProgressReload})
		require.Equal(t, 0, h.clock.Pending())
	})

	t.Run("wallet update is forwarded", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := h.session(t)

		session.HandleEvent(t.Context(), realtime.Event{
			Type:          realtime.EventWalletUpdated,
			WalletUpdated: &realtime.WalletUpdated{Balance: 17},
		})

		balance, _ := h.wallet.state()
		require.Equal(t, 17, balance)
	})

	t.Run("progress reload trigger", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		session.HandleEvent(t.Context(), realtime.Event{
			Type:           realtime.EventProgressReload,
			ProgressReload: &realtime.ProgressReload{Prefix: "reading:"},
		})
		require.Equal(t, 0, h.clock.Pending())

		session.HandleEvent(t.Context(), realtime.Event{
			Type:           realtime.EventProgressReload,
			ProgressReload: &realtime.ProgressReload{Prefix: "math:"},
		})
		require.Equal(t, 1, h.clock.Pending())

		h.clock.Advance(time.Second)
		require.Equal(t, 2, h.api.batchCallCount())
	})

	t.Run("reload scheduled before navigating away is dropped", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		session := navigatedSession(t, h)

		session.HandleEvent(t.Context(), completedEvent(first, 5))
		require.Equal(t, 1, h.clock.Pending())

		_, err := session.Navigate(t.Context(), readingKey)
		require.NoError(t, err)
		require.Equal(t, 2, h.api.batchCallCount())

		h.clock.Advance(time.Second)
		require.Equal(t, 2, h.api.batchCallCount())

		view, err := session.View(t.Context())
		require.NoError(t, err)
		require.Equal(t, 0, view.Stats.CompletedGames)
	})
}
