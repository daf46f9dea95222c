package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/ratelimiting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

// rateLimits are the token bucket parameters of one port.
type rateLimits struct {
	ipRefill     ratelimiting.RefillPerSecond
	ipBurst      ratelimiting.BurstSize
	userIDRefill ratelimiting.RefillPerSecond
	userIDBurst  ratelimiting.BurstSize
}

var (
	readLimits = rateLimits{
		ipRefill:     8,
		ipBurst:      240,
		userIDRefill: 4,
		userIDBurst:  120,
	}
	// Purchases are rare, a burst of them is a stuck client
	replayLimits = rateLimits{
		ipRefill:     1,
		ipBurst:      20,
		userIDRefill: 0.5,
		userIDBurst:  5,
	}
)

func makeOnLimitExceeded(rateLimiter ratelimiting.RequestRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		statusCode := http.StatusTooManyRequests

		logging.FromContext(ctx).InfoContext(ctx, "Rate limit exceeded",
			slog.Int("statusCode", statusCode),
			slog.String("key", rateLimiter.KeyFor(r)),
		)

		writeErrorResponse(ctx, w, statusCode, "rate limit exceeded")
	}
}

// buildPortMiddleware is the middleware stack shared by every port.
func buildPortMiddleware(
	port string,
	limits rateLimits,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.ipRefill, limits.ipBurst)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.userIDRefill, limits.userIDBurst)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	return ComposeMiddlewares(
		buildMetricsMiddleware(port),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware(userIDRateLimiter, makeOnLimitExceeded(userIDRateLimiter)),
	)
}
