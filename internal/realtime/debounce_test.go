package realtime_test

import (
	"testing"
	"time"

	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/Amund211/gamegate/internal/realtime/realtimetest"
	"github.com/stretchr/testify/require"
)

func TestDebouncer(t *testing.T) {
	t.Parallel()

	const delay = 750 * time.Millisecond

	t.Run("runs once after the delay", func(t *testing.T) {
		t.Parallel()

		clock := realtimetest.NewFakeClock()
		debouncer := realtime.NewDebouncer(clock, delay)

		calls := 0
		debouncer.Schedule("reload", func() { calls++ })
		require.True(t, debouncer.Pending("reload"))

		clock.Advance(delay - time.Millisecond)
		require.Equal(t, 0, calls)

		clock.Advance(time.Millisecond)
		require.Equal(t, 1, calls)
		require.False(t, debouncer.Pending("reload"))
	})

	t.Run("bursts coalesce into one call", func(t *testing.T) {
		t.Parallel()

		clock := realtimetest.NewFakeClock()
		debouncer := realtime.NewDebouncer(clock, delay)

		calls := 0
		for range 5 {
			debouncer.Schedule("reload", func() { calls++ })
			clock.Advance(delay / 2)
		}
		require.Equal(t, 0, calls)
		require.Equal(t, 1, clock.Pending())

		clock.Advance(delay)
		require.Equal(t, 1, calls)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		clock := realtimetest.NewFakeClock()
		debouncer := realtime.NewDebouncer(clock, delay)

		var fired []string
		debouncer.Schedule("a", func() { fired = append(fired, "a") })
		clock.Advance(delay / 2)
		debouncer.Schedule("b", func() { fired = append(fired, "b") })
		clock.Advance(delay / 2)
		require.Equal(t, []string{"a"}, fired)
		clock.Advance(delay / 2)
		require.Equal(t, []string{"a", "b"}, fired)
	})

	t.Run("cancel all drops pending calls", func(t *testing.T) {
		t.Parallel()

		clock := realtimetest.NewFakeClock()
		debouncer := realtime.NewDebouncer(clock, delay)

		calls := 0
		debouncer.Schedule("a", func() { calls++ })
		debouncer.Schedule("b", func() { calls++ })
		debouncer.CancelAll()
		require.Equal(t, 0, clock.Pending())

		clock.Advance(2 * delay)
		require.Equal(t, 0, calls)

		debouncer.Schedule("a", func() { calls++ })
		clock.Advance(delay)
		require.Equal(t, 1, calls)
	})

	t.Run("a fired timer whose call was replaced does nothing", func(t *testing.T) {
		t.Parallel()

		clock := &leakyClock{}
		debouncer := realtime.NewDebouncer(clock, delay)

		first, second := 0, 0
		debouncer.Schedule("reload", func() { first++ })
		debouncer.Schedule("reload", func() { second++ })

		// Both callbacks are still runnable since leakyClock ignores Stop
		clock.fireAll()
		require.Equal(t, 0, first)
		require.Equal(t, 1, second)
	})
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

type leakyClock struct {
	callbacks []func()
}

func (c *leakyClock) AfterFunc(d time.Duration, f func()) realtime.Timer {
	c.callbacks = append(c.callbacks, f)
	return leakyTimer{}
}

func (c *leakyClock) fireAll() {
	for _, f := range c.callbacks {
		f()
	}
}
