package ports

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Amund211/gamegate/internal/app"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/replay"
	"github.com/Amund211/gamegate/internal/reporting"
)

func replayStatusCode(result domain.ReplayResult) int {
	if result.Confirmed() {
		return http.StatusOK
	}

	var rejection *domain.RejectionError
	switch err := result.Err; {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSubscriptionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyProcessing), errors.Is(err, domain.ErrNotCompleted), errors.Is(err, domain.ErrNoCatalog):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, replay.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, app.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &rejection):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func MakeReplayHandler(
	sessions SessionProvider,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("replay", replayLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, session, ok := requestSession(w, r, sessions)
		if !ok {
			return
		}

		gameID := r.PathValue("gameId")
		ctx = logging.AddMetaToContext(ctx, slog.String("gameId", gameID))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"gameId": gameID})

		result := session.RequestReplay(ctx, gameID)
		statusCode := replayStatusCode(result)

		if statusCode == http.StatusInternalServerError {
			logging.FromContext(ctx).ErrorContext(ctx, "Unexpected replay failure", slog.String("error", result.Err.Error()))
			reporting.Report(ctx, result.Err)
		}
		logging.FromContext(ctx).InfoContext(ctx, "Returning replay result",
			slog.String("status", result.Status.String()),
			slog.Int("statusCode", statusCode),
		)

		writeJSONResponse(ctx, w, statusCode, replayResultToResponse(result))
	}

	return middleware(handler)
}
