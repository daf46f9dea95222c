package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/progress"
	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/Amund211/gamegate/internal/reporting"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HandleEvent applies one push event to the session.
//
// Events arrive one at a time from the source, so events for a game are applied
// in receipt order. Game events only touch the store when the game belongs to
// the current catalog. The follow-up reload is scheduled after the event is
// applied.
func (s *Session) HandleEvent(ctx context.Context, event realtime.Event) {
	metrics.reconciledEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(event.Type))))

	switch event.Type {
	case realtime.EventGameCompleted:
		s.handleGameCompleted(ctx, *event.GameCompleted)
	case realtime.EventGameReplayed:
		s.handleGameReplayed(ctx, *event.GameReplayed)
	case realtime.EventWalletUpdated:
		s.deps.Wallet.SetBalance(ctx, s.userID, event.WalletUpdated.Balance)
	case realtime.EventProgressReload:
		s.handleProgressReload(ctx, event.ProgressReload)
	default:
		logging.FromContext(ctx).WarnContext(ctx, "Ignoring event of unknown type", slog.String("type", string(event.Type)))
	}
}

// inCurrentCatalogLocked reports whether gameID is part of the current catalog.
// Callers hold mu.
func (s *Session) inCurrentCatalogLocked(gameID string) bool {
	if s.closed || s.store == nil {
		return false
	}
	_, ok := s.positions[gameID]
	return ok
}

func (s *Session) handleGameCompleted(ctx context.Context, event realtime.GameCompleted) {
	logger := logging.FromContext(ctx).With(slog.String("gameId", event.GameID))

	if event.NewBalance != nil {
		s.deps.Wallet.SetBalance(ctx, s.userID, *event.NewBalance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inCurrentCatalogLocked(event.GameID) {
		logger.DebugContext(ctx, "Ignoring completion outside the current catalog")
		return
	}

	if event.IsFullyCompleted() {
		if !s.store.ApplyCompletion(event.GameID, event.CoinsEarned) {
			logger.DebugContext(ctx, "Duplicate completion event")
		}
	}
	s.scheduleReloadLocked(s.generation)
}

func (s *Session) handleGameReplayed(ctx context.Context, event realtime.GameReplayed) {
	logger := logging.FromContext(ctx).With(slog.String("gameId", event.GameID))

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inCurrentCatalogLocked(event.GameID) {
		logger.DebugContext(ctx, "Ignoring replay event outside the current catalog")
		return
	}

	if event.ReplayUnlocked {
		// Duplicate delivery of a purchase confirmation
		err := s.store.ApplyReplayGranted(event.GameID)
		if err != nil {
			logger.ErrorContext(ctx, "Invalid replay grant from event", slog.String("error", err.Error()))
			reporting.Report(ctx, err, map[string]string{"gameId": event.GameID})
		}
	} else {
		s.store.ApplyReplayConsumed(event.GameID)
	}
	s.scheduleReloadLocked(s.generation)
	s.startPointCheckLocked(event.GameID)
}

// startPointCheckLocked fetches the authoritative record of gameID in the
// background and merges it if the store is still current. Callers hold mu.
func (s *Session) startPointCheckLocked(gameID string) {
	store := s.store
	asOf := store.Revision()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.pointCheck(s.baseCtx, store, asOf, gameID)
	}()
}

func (s *Session) pointCheck(ctx context.Context, store *progress.Store, asOf progress.Revision, gameID string) {
	logger := logging.FromContext(ctx).With(slog.String("gameId", gameID))

	record, err := s.deps.Progress.FetchGame(ctx, s.userID, gameID)
	if err != nil {
		logger.WarnContext(ctx, "Point-check failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.store != store {
		logger.DebugContext(ctx, "Discarding point-check for a previous catalog")
		return
	}
	s.store.Merge(gameID, record, asOf)
}

func (s *Session) handleProgressReload(ctx context.Context, event *realtime.ProgressReload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.store == nil {
		return
	}
	if event != nil && event.Prefix != "" && !strings.HasPrefix(s.key.String(), event.Prefix) && !strings.HasPrefix(event.Prefix, s.key.String()) {
		logging.FromContext(ctx).DebugContext(ctx, "Ignoring reload for another catalog", slog.String("prefix", event.Prefix))
		return
	}
	s.scheduleReloadLocked(s.generation)
}
