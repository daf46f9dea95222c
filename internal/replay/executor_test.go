package replay_test

import (
	"context"
	"testing"
	"time"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor(t *testing.T) {
	t.Parallel()

	never := func(time.Duration) <-chan time.Time {
		return make(chan time.Time)
	}

	t.Run("returns the purchase response", func(t *testing.T) {
		t.Parallel()

		executor := replay.NewExecutor(10*time.Second, never)

		response, err := executor.Execute(t.Context(), func(ctx context.Context) (replay.PurchaseResponse, error) {
			return replay.PurchaseResponse{ReplayUnlocked: true, Message: "ok"}, nil
		}, func(replay.PurchaseResponse, error) {
			t.Error("late handler should not be called")
		})

		require.NoError(t, err)
		require.Equal(t, replay.PurchaseResponse{ReplayUnlocked: true, Message: "ok"}, response)
	})

	t.Run("returns the purchase error", func(t *testing.T) {
		t.Parallel()

		executor := replay.NewExecutor(10*time.Second, never)

		_, err := executor.Execute(t.Context(), func(ctx context.Context) (replay.PurchaseResponse, error) {
			return replay.PurchaseResponse{}, assert.AnError
		}, nil)

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("times out and hands the late response off", func(t *testing.T) {
		t.Parallel()

		timeout := make(chan time.Time, 1)
		var requestedTimeout time.Duration
		executor := replay.NewExecutor(10*time.Second, func(d time.Duration) <-chan time.Time {
			requestedTimeout = d
			return timeout
		})

		release := make(chan struct{})
		late := make(chan replay.PurchaseResponse, 1)

		timeout <- time.Now()
		_, err := executor.Execute(t.Context(), func(ctx context.Context) (replay.PurchaseResponse, error) {
			<-release
			// The request outlives the timeout
			assert.NoError(t, ctx.Err())
			return replay.PurchaseResponse{ReplayUnlocked: true}, nil
		}, func(response replay.PurchaseResponse, err error) {
			assert.NoError(t, err)
			late <- response
		})

		require.ErrorIs(t, err, replay.ErrTimeout)
		require.ErrorIs(t, err, domain.ErrNetwork)
		require.Equal(t, 10*time.Second, requestedTimeout)

		close(release)
		select {
		case response := <-late:
			require.True(t, response.ReplayUnlocked)
		case <-time.After(5 * time.Second):
			t.Fatal("late response was never delivered")
		}
	})

	t.Run("caller cancellation", func(t *testing.T) {
		t.Parallel()

		executor := replay.NewExecutor(10*time.Second, never)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		release := make(chan struct{})
		defer close(release)

		_, err := executor.Execute(ctx, func(ctx context.Context) (replay.PurchaseResponse, error) {
			<-release
			return replay.PurchaseResponse{}, nil
		}, nil)

		require.ErrorIs(t, err, domain.ErrNetwork)
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, replay.ErrAbandoned)
		require.True(t, replay.StillPending(err))
	})
}
