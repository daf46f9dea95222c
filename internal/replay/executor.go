package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/gamegate/internal/domain"
)

var (
	// ErrTimeout is returned when the purchase did not answer within the client side timeout.
	ErrTimeout = fmt.Errorf("%w: replay unlock timed out", domain.ErrNetwork)
	// ErrAbandoned is returned when the caller gave up before the purchase answered.
	ErrAbandoned = fmt.Errorf("%w: replay unlock abandoned", domain.ErrNetwork)
)

// StillPending reports whether the purchase behind err was still running when
// Execute returned. Its outcome is then delivered to onLate.
func StillPending(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrAbandoned)
}

// A response arriving this long after the request was sent is dropped
const lateResponseLimit = 1 * time.Minute

type PurchaseResponse struct {
	ReplayUnlocked bool
	Message        string
}

type PurchaseFunc func(ctx context.Context) (PurchaseResponse, error)

// LateFunc receives the outcome of a purchase that finished after the caller gave up on it.
type LateFunc func(response PurchaseResponse, err error)

type Executor struct {
	timeout   time.Duration
	afterFunc func(time.Duration) <-chan time.Time
}

func NewExecutor(timeout time.Duration, afterFunc func(time.Duration) <-chan time.Time) *Executor {
	return &Executor{
		timeout:   timeout,
		afterFunc: afterFunc,
	}
}

type purchaseOutcome struct {
	response PurchaseResponse
	err      error
}

// Execute runs purchase and waits at most the executor timeout for it.
//
// The request is not canceled when the timeout fires or ctx is done: the
// server may still complete it. Execute then returns an error for which
// StillPending is true, and onLate is called exactly once with the answer.
func (e *Executor) Execute(ctx context.Context, purchase PurchaseFunc, onLate LateFunc) (PurchaseResponse, error) {
	done := make(chan purchaseOutcome, 1)

	requestCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lateResponseLimit)
	go func() {
		defer cancel()
		response, err := purchase(requestCtx)
		done <- purchaseOutcome{response: response, err: err}
	}()

	handOff := func() {
		go func() {
			outcome := <-done
			if onLate != nil {
				onLate(outcome.response, outcome.err)
			}
		}()
	}

	select {
	case outcome := <-done:
		return outcome.response, outcome.err
	case <-e.afterFunc(e.timeout):
		handOff()
		return PurchaseResponse{}, ErrTimeout
	case <-ctx.Done():
		handOff()
		return PurchaseResponse{}, fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err())
	}
}
