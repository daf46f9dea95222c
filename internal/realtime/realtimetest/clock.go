// Package realtimetest provides a manually advanced clock for debounce tests.
package realtimetest

import (
	"sort"
	"sync"
	"time"

	"github.com/Amund211/gamegate/internal/realtime"
)

type fakeTimer struct {
	clock *FakeClock
	id    int
}

func (t *fakeTimer) Stop() bool {
	return t.clock.stop(t.id)
}

type scheduled struct {
	id int
	at time.Duration
	fn func()
}

type FakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending []scheduled
}

var _ realtime.Clock = (*FakeClock)(nil)

func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) realtime.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.pending = append(c.pending, scheduled{id: c.nextID, at: c.now + d, fn: f})
	return &fakeTimer{clock: c, id: c.nextID}
}

func (c *FakeClock) stop(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.pending {
		if s.id == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Advance moves the clock forward and runs due callbacks synchronously, in order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	sort.SliceStable(c.pending, func(i, j int) bool {
		return c.pending[i].at < c.pending[j].at
	})
	var due []scheduled
	remaining := c.pending[:0]
	for _, s := range c.pending {
		if s.at <= c.now {
			due = append(due, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	for _, s := range due {
		s.fn()
	}
}
