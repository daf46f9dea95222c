package realtime

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock schedules callbacks with time.AfterFunc.
func SystemClock() Clock {
	return systemClock{}
}

type pendingCall struct {
	timer Timer
	token uint64
}

// Debouncer coalesces calls per key: scheduling a key again restarts its delay.
// CancelAll drops every pending call, including callbacks whose timer already
// fired but which have not started running yet.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	pending map[string]pendingCall
	tokens  uint64
}

func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	return &Debouncer{
		clock:   clock,
		delay:   delay,
		pending: make(map[string]pendingCall),
	}
}

func (d *Debouncer) Schedule(key string, f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[key]; ok {
		existing.timer.Stop()
	}

	d.tokens++
	token := d.tokens
	timer := d.clock.AfterFunc(d.delay, func() {
		if d.claim(key, token) {
			f()
		}
	})
	d.pending[key] = pendingCall{timer: timer, token: token}
}

func (d *Debouncer) claim(key string, token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.pending[key]
	if !ok || current.token != token {
		return false
	}
	delete(d.pending, key)
	return true
}

func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.pending[key]
	return ok
}

func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, call := range d.pending {
		call.timer.Stop()
		delete(d.pending, key)
	}
}
