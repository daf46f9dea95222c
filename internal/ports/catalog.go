package ports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Amund211/gamegate/internal/app"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/reporting"
)

// Bodies are a topic and an age tier, anything larger is not a navigation
const maxNavigateBodySize = 4 * 1024

type SessionProvider interface {
	Get(ctx context.Context, userID string) *app.Session
}

// requestSession resolves the session of the calling user. It writes an error
// response and returns false when the request has no user id.
func requestSession(w http.ResponseWriter, r *http.Request, sessions SessionProvider) (context.Context, *app.Session, bool) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		statusCode := http.StatusBadRequest
		logging.FromContext(ctx).InfoContext(ctx, "Missing user id", slog.Int("statusCode", statusCode))
		writeErrorResponse(ctx, w, statusCode, "missing user id")
		return ctx, nil, false
	}
	ctx = reporting.SetUserIDInContext(ctx, userID)

	return ctx, sessions.Get(ctx, userID), true
}

func writeSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.FromContext(ctx)

	switch {
	case errors.Is(err, domain.ErrNoCatalog):
		writeErrorResponse(ctx, w, http.StatusConflict, "no catalog selected")
	case errors.Is(err, domain.ErrGameNotFound):
		writeErrorResponse(ctx, w, http.StatusNotFound, "game not found")
	case errors.Is(err, app.ErrSessionClosed):
		logger.InfoContext(ctx, "Session closed during request")
		writeErrorResponse(ctx, w, http.StatusServiceUnavailable, "session expired, please retry")
	default:
		logger.ErrorContext(ctx, "Unexpected session error", slog.String("error", err.Error()))
		reporting.Report(ctx, err)
		writeErrorResponse(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

type navigateRequest struct {
	Topic   string `json:"topic"`
	AgeTier string `json:"ageTier"`
}

func MakeNavigateHandler(
	sessions SessionProvider,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("navigate", readLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, session, ok := requestSession(w, r, sessions)
		if !ok {
			return
		}
		logger := logging.FromContext(ctx)

		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxNavigateBodySize))
		if err != nil {
			logger.InfoContext(ctx, "Failed to read request body", slog.String("error", err.Error()))
			writeErrorResponse(ctx, w, http.StatusBadRequest, "failed to read request body")
			return
		}

		var request navigateRequest
		if err := json.Unmarshal(body, &request); err != nil {
			logger.InfoContext(ctx, "Failed to parse request body", slog.String("error", err.Error()))
			writeErrorResponse(ctx, w, http.StatusBadRequest, "failed to parse request body")
			return
		}
		if request.Topic == "" || request.AgeTier == "" {
			writeErrorResponse(ctx, w, http.StatusBadRequest, "topic and ageTier are required")
			return
		}

		key := domain.CatalogKey{Topic: request.Topic, AgeTier: request.AgeTier}
		ctx = logging.AddMetaToContext(ctx, slog.String("catalog", key.String()))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"catalog": key.String()})

		view, err := session.Navigate(ctx, key)
		if err != nil {
			writeSessionError(ctx, w, err)
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "Returning catalog", slog.Int("games", len(view.Games)), slog.Bool("stale", view.Stale))
		writeJSONResponse(ctx, w, http.StatusOK, viewToResponse(view))
	}

	return middleware(handler)
}

func MakeGetCatalogHandler(
	sessions SessionProvider,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("catalog", readLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, session, ok := requestSession(w, r, sessions)
		if !ok {
			return
		}

		view, err := session.View(ctx)
		if err != nil {
			writeSessionError(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, viewToResponse(view))
	}

	return middleware(handler)
}

func MakeGetGameHandler(
	sessions SessionProvider,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("game", readLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, session, ok := requestSession(w, r, sessions)
		if !ok {
			return
		}

		gameID := r.PathValue("gameId")
		ctx = logging.AddMetaToContext(ctx, slog.String("gameId", gameID))

		game, err := session.Verdict(ctx, gameID)
		if err != nil {
			writeSessionError(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, singleGameResponse{
			Success: true,
			Game:    gameToResponse(game),
		})
	}

	return middleware(handler)
}

func MakeGetStatsHandler(
	sessions SessionProvider,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("stats", readLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, session, ok := requestSession(w, r, sessions)
		if !ok {
			return
		}

		stats, err := session.Stats(ctx)
		if err != nil {
			writeSessionError(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, singleStatsResponse{
			Success: true,
			Stats:   statsToResponse(stats),
		})
	}

	return middleware(handler)
}
