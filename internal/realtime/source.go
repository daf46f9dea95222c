package realtime

import (
	"context"
)

// Handler receives the events of one subscription, one at a time, in the order
// the channel delivered them.
type Handler func(ctx context.Context, event Event)

// Source is a push channel carrying one user's progression events.
type Source interface {
	// Subscribe connects to the channel of userID and forwards events to
	// handle from a single goroutine until ctx is canceled.
	// Returns an error if the initial connection fails.
	Subscribe(ctx context.Context, userID string, handle Handler) error
}

type noopSource struct{}

func (noopSource) Subscribe(ctx context.Context, userID string, handle Handler) error {
	return nil
}

// NoopSource never delivers anything. Used in development without a push channel.
func NoopSource() Source {
	return noopSource{}
}
