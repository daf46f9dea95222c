package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// WindowLimiter allows at most limit operations to finish within any window.
//
// It keeps the finish times of the last limit operations. A new operation
// takes the oldest finish time, waits until it has left the window, runs, and
// puts its own finish time back.
type WindowLimiter struct {
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	slots chan struct{}

	mu       sync.Mutex
	finished []time.Time
}

func NewWindowLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *WindowLimiter {
	slots := make(chan struct{}, limit)
	finished := make([]time.Time, limit)
	longAgo := nowFunc().Add(-window)
	for i := range limit {
		slots <- struct{}{}
		finished[i] = longAgo
	}

	return &WindowLimiter{
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		slots:    slots,
		finished: finished,
	}
}

// Limit runs operation once the window allows it, and reports whether it ran.
// The operation is skipped if ctx is done first, or if ctx has a deadline that
// the wait plus maxOperationTime would overrun.
func (l *WindowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool {
	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := l.takeOldest(ctx, maxOperationTime)
	if !ok {
		return false
	}
	// Put the taken finish time back unless the operation runs
	finishedAt := oldest
	defer func() {
		l.putFinished(finishedAt)
	}()

	if wait := l.waitFor(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation(ctx)
	finishedAt = l.nowFunc()
	return true
}

func (l *WindowLimiter) waitFor(finishedAt time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(finishedAt)
}

func (l *WindowLimiter) fitsDeadline(ctx context.Context, wait time.Duration, maxOperationTime time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return max(wait, 0)+maxOperationTime <= deadline.Sub(l.nowFunc())
}

func (l *WindowLimiter) takeOldest(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	oldest := l.finished[0]
	if !l.fitsDeadline(ctx, l.waitFor(oldest), maxOperationTime) {
		return time.Time{}, false
	}

	l.finished = l.finished[1:]
	return oldest, true
}

func (l *WindowLimiter) putFinished(finishedAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, _ := slices.BinarySearchFunc(l.finished, finishedAt, func(a, b time.Time) int {
		return a.Compare(b)
	})
	l.finished = slices.Insert(l.finished, i, finishedAt)
}
