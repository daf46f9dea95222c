package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/reporting"
	"github.com/jellydator/ttlcache/v3"
)

type SessionFactory func(ctx context.Context, userID string) *Session

// SessionRegistry keeps one session per user and closes sessions that have
// not been used for the idle ttl.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions *ttlcache.Cache[string, *Session]
	factory  SessionFactory
}

// NewSessionRegistry returns the registry and a function that stops the
// expiry loop and closes every session.
func NewSessionRegistry(idleTTL time.Duration, factory SessionFactory) (*SessionRegistry, func()) {
	sessions := ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](idleTTL),
	)
	sessions.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		item.Value().Close()
	})
	go sessions.Start()

	registry := &SessionRegistry{
		sessions: sessions,
		factory:  factory,
	}

	stop := func() {
		sessions.Stop()
		for _, session := range sessions.Items() {
			session.Value().Close()
		}
		sessions.DeleteAll()
	}

	return registry, stop
}

// Get returns the session of userID, creating and starting it on first use.
// Every call extends the session's idle deadline.
func (r *SessionRegistry) Get(ctx context.Context, userID string) *Session {
	r.mu.Lock()
	if item := r.sessions.Get(userID); item != nil {
		r.mu.Unlock()
		return item.Value()
	}
	session := r.factory(ctx, userID)
	r.sessions.Set(userID, session, ttlcache.DefaultTTL)
	r.mu.Unlock()

	err := session.Start()
	if err != nil {
		// The session still works without push events, it just relies on reloads
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to start session event subscription", slog.String("error", err.Error()))
		reporting.Report(ctx, err)
	}
	return session
}

// Lookup returns the session of userID if one is active.
func (r *SessionRegistry) Lookup(userID string) (*Session, bool) {
	item := r.sessions.Get(userID)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}

// Remove closes and forgets the session of userID.
func (r *SessionRegistry) Remove(userID string) {
	r.sessions.Delete(userID)
}
