package app

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type appMetricsCollection struct {
	replayOutcomes   metric.Int64Counter
	reconciledEvents metric.Int64Counter
	reloads          metric.Int64Counter
}

var metrics appMetricsCollection

func init() {
	const name = "gamegate/app"
	meter := otel.Meter(name)

	replayOutcomes, err := meter.Int64Counter(
		"app/replay_outcomes",
		metric.WithDescription("Replay requests by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create replay outcomes metric: %w", err))
	}

	reconciledEvents, err := meter.Int64Counter(
		"app/reconciled_events",
		metric.WithDescription("Push events applied to a session"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create reconciled events metric: %w", err))
	}

	reloads, err := meter.Int64Counter(
		"app/reloads",
		metric.WithDescription("Batch progress loads by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create reloads metric: %w", err))
	}

	metrics = appMetricsCollection{
		replayOutcomes:   replayOutcomes,
		reconciledEvents: reconciledEvents,
		reloads:          reloads,
	}
}
