package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/gamegate/internal/access"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/progress"
	"github.com/Amund211/gamegate/internal/replay"
	"github.com/Amund211/gamegate/internal/reporting"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func failedReplay(gameID string, cost int, err error) domain.ReplayResult {
	return domain.ReplayResult{
		GameID:  gameID,
		Cost:    cost,
		Status:  domain.ReplayFailed,
		Message: replay.UserMessage(err),
		Err:     err,
	}
}

func confirmedReplay(gameID string, cost int, message string) domain.ReplayResult {
	return domain.ReplayResult{
		GameID:  gameID,
		Cost:    cost,
		Status:  domain.ReplayConfirmed,
		Message: message,
		Err:     nil,
	}
}

func replayOutcome(result domain.ReplayResult) string {
	if result.Confirmed() {
		return "confirmed"
	}
	switch {
	case result.Err == nil:
		return "unknown"
	case errors.Is(result.Err, replay.ErrTimeout):
		return "timeout"
	case errors.Is(result.Err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(result.Err, domain.ErrSubscriptionDenied):
		return "subscription_denied"
	case errors.Is(result.Err, domain.ErrAlreadyProcessing):
		return "already_processing"
	case errors.Is(result.Err, domain.ErrNotCompleted):
		return "not_completed"
	case errors.Is(result.Err, domain.ErrNetwork):
		return "network"
	default:
		return "rejected"
	}
}

// RequestReplay buys a replay of a completed game.
//
// Local preconditions are checked before anything is sent: the game must be
// completed, covered by the subscription and affordable, and no other
// purchase for it may be pending. The store is only changed once the
// backend confirms the purchase.
func (s *Session) RequestReplay(ctx context.Context, gameID string) domain.ReplayResult {
	result := s.requestReplay(ctx, gameID)
	metrics.replayOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", replayOutcome(result))))
	return result
}

func (s *Session) requestReplay(ctx context.Context, gameID string) domain.ReplayResult {
	logger := logging.FromContext(ctx).With(slog.String("gameId", gameID))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failedReplay(gameID, 0, ErrSessionClosed)
	}
	if s.store == nil {
		s.mu.Unlock()
		return failedReplay(gameID, 0, domain.ErrNoCatalog)
	}
	position, ok := s.positions[gameID]
	if !ok {
		s.mu.Unlock()
		return failedReplay(gameID, 0, fmt.Errorf("%w: %s", domain.ErrGameNotFound, gameID))
	}
	game := s.catalog[position]
	store := s.store
	key := s.key
	record := s.store.Get(gameID)
	completedCount := access.CompletedCount(s.catalog, s.store)
	allowed := access.SubscriptionAllows(s.tier, position)
	s.mu.Unlock()

	cost := replay.Cost(game.Index)

	if s.guard.InFlight(gameID) {
		return failedReplay(gameID, cost, fmt.Errorf("%w: replay for game %s", domain.ErrAlreadyProcessing, gameID))
	}
	if !record.Completed {
		return failedReplay(gameID, cost, fmt.Errorf("%w: %s", domain.ErrNotCompleted, gameID))
	}
	if !allowed {
		return failedReplay(gameID, cost, &domain.DenialError{})
	}
	if record.ReplayUnlocked {
		return confirmedReplay(gameID, cost, replay.ConfirmedMessage(true))
	}

	entitlement, err := s.deps.Entitlements.CanPlayIndex(ctx, s.userID, key.String(), completedCount, position)
	if err != nil {
		logger.WarnContext(ctx, "Failed to check entitlement for replay", slog.String("error", err.Error()))
		return failedReplay(gameID, cost, err)
	}
	if !entitlement.Allowed {
		return failedReplay(gameID, cost, &domain.DenialError{Reason: entitlement.Reason})
	}

	balance, err := s.deps.Wallet.Balance(ctx, s.userID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to get wallet balance for replay", slog.String("error", err.Error()))
		return failedReplay(gameID, cost, err)
	}
	if balance < cost {
		result := failedReplay(gameID, cost, fmt.Errorf("%w: balance %d, cost %d", domain.ErrInsufficientBalance, balance, cost))
		result.Message = replay.InsufficientBalanceMessage(cost, balance)
		return result
	}

	tx, err := s.guard.Begin(gameID, cost)
	if err != nil {
		return failedReplay(gameID, cost, err)
	}

	purchase := func(ctx context.Context) (replay.PurchaseResponse, error) {
		response, err := s.deps.Progress.UnlockReplay(ctx, s.userID, gameID, cost, tx.ID)
		return replay.PurchaseResponse{
			ReplayUnlocked: response.ReplayUnlocked,
			Message:        response.Message,
		}, err
	}

	// The claim on the game is held until the backend has answered, so a
	// retry cannot send a second purchase while the first may still debit.
	onLate := func(response replay.PurchaseResponse, err error) {
		lateLogger := logging.FromContext(s.baseCtx).With(slog.String("gameId", gameID))
		if err != nil || !response.ReplayUnlocked {
			lateLogger.InfoContext(s.baseCtx, "Late replay response was not a confirmation")
			s.guard.Finish(tx, domain.ReplayFailed)
			return
		}
		lateLogger.InfoContext(s.baseCtx, "Applying late replay confirmation")
		s.applyReplayGranted(s.baseCtx, store, gameID)
		s.guard.Finish(tx, domain.ReplayConfirmed)
		s.refreshWallet(s.baseCtx)
	}

	response, err := s.executor.Execute(ctx, purchase, onLate)
	if replay.StillPending(err) {
		logger.WarnContext(ctx, "Replay purchase still pending after giving up on it", slog.String("error", err.Error()))
		return failedReplay(gameID, cost, err)
	}
	if err != nil {
		s.guard.Finish(tx, domain.ReplayFailed)
		logger.WarnContext(ctx, "Replay purchase failed", slog.String("error", err.Error()))
		return failedReplay(gameID, cost, err)
	}
	if !response.ReplayUnlocked {
		s.guard.Finish(tx, domain.ReplayFailed)
		logger.InfoContext(ctx, "Replay purchase was not granted", slog.String("message", response.Message))
		return failedReplay(gameID, cost, &domain.RejectionError{StatusCode: http.StatusOK, Message: response.Message})
	}

	s.applyReplayGranted(ctx, store, gameID)
	s.guard.Finish(tx, domain.ReplayConfirmed)
	s.refreshWallet(ctx)

	message := response.Message
	if message == "" {
		message = replay.ConfirmedMessage(false)
	}
	return confirmedReplay(gameID, cost, message)
}

// applyReplayGranted applies a confirmed purchase to store, if store is still the current one.
func (s *Session) applyReplayGranted(ctx context.Context, store *progress.Store, gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.store != store {
		logging.FromContext(ctx).DebugContext(ctx, "Discarding replay grant for a previous catalog", slog.String("gameId", gameID))
		return
	}

	err := s.store.ApplyReplayGranted(gameID)
	if err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "Invalid replay grant", slog.String("error", err.Error()))
		reporting.Report(ctx, err, map[string]string{"gameId": gameID})
	}
}

func (s *Session) refreshWallet(ctx context.Context) {
	_, err := s.deps.Wallet.Refresh(ctx, s.userID)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to refresh wallet balance", slog.String("error", err.Error()))
	}
}
