package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/gamegate/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var lookups metric.Int64Counter

func init() {
	meter := otel.Meter("gamegate/adapters/cache")

	var err error
	lookups, err = meter.Int64Counter(
		"cache/lookups",
		metric.WithDescription("Collaborator cache lookups by cache and result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cache lookups metric: %w", err))
	}
}

// GetOrFetch returns the cached value for key, calling fetch on a miss.
//
// Concurrent callers asking for the same key wait for the first one's fetch.
// A failed fetch is not cached, so the next caller fetches again. The bool
// reports whether this call did the fetch. name labels the cache in logs and
// metrics, e.g. "wallet_balance".
func GetOrFetch[T any](ctx context.Context, cache Cache[T], name string, key string, fetch func(ctx context.Context) (T, error)) (T, bool, error) {
	logger := logging.FromContext(ctx).With(slog.String("cache", name))

	for {
		result := cache.getOrClaim(key)
		switch {
		case result.claimed:
			lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", name), attribute.String("result", "miss")))
			logger.DebugContext(ctx, "Fetching value for cache miss")
			return fetchClaimed(ctx, cache, key, fetch)
		case result.valid:
			lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", name), attribute.String("result", "hit")))
			return result.data, false, nil
		}

		cache.wait()
	}
}

// fetchClaimed fills a claimed key, releasing the claim if fetch fails.
func fetchClaimed[T any](ctx context.Context, cache Cache[T], key string, fetch func(ctx context.Context) (T, error)) (T, bool, error) {
	data, err := fetch(ctx)
	if err != nil {
		cache.delete(key)
		var zero T
		return zero, false, fmt.Errorf("failed to fetch cached value: %w", err)
	}

	cache.set(key, data)
	return data, true, nil
}
