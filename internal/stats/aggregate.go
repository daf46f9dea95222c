package stats

import (
	"context"
	"log/slog"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
)

type ProgressReader interface {
	Get(gameID string) domain.ProgressRecord
	CompletedCount() int
}

// Aggregate derives the summary counters of a catalog.
//
// Games are counted once per id. Coins prefer the server reported total of a
// game and fall back to the catalog reward, so the numbers are useful before
// the first batch load lands.
func Aggregate(ctx context.Context, catalog []domain.GameDescriptor, store ProgressReader) domain.Stats {
	logger := logging.FromContext(ctx)

	seen := make(map[string]bool, len(catalog))
	result := domain.Stats{}

	for _, game := range catalog {
		if seen[game.ID] {
			logger.WarnContext(ctx, "Skipping duplicate game in catalog", slog.String("gameID", game.ID))
			continue
		}
		seen[game.ID] = true
		result.TotalGames++

		record := store.Get(game.ID)
		if !record.Completed {
			continue
		}

		result.CompletedGames++
		result.XPGained += game.XPReward
		if record.TotalCoinsEarned > 0 {
			result.CoinsEarned += record.TotalCoinsEarned
		} else {
			result.CoinsEarned += game.CoinsReward
		}
	}

	if storeCompleted := store.CompletedCount(); storeCompleted > result.TotalGames {
		logger.ErrorContext(ctx, "Progress store reports more completions than the catalog has games",
			slog.Int("storeCompleted", storeCompleted),
			slog.Int("totalGames", result.TotalGames),
		)
	}
	if result.CompletedGames > result.TotalGames {
		result.CompletedGames = result.TotalGames
	}

	return result
}
