package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Amund211/gamegate/internal/access"
	"github.com/Amund211/gamegate/internal/adapters/cache"
	"github.com/Amund211/gamegate/internal/adapters/entitlement"
	"github.com/Amund211/gamegate/internal/adapters/progressapi"
	"github.com/Amund211/gamegate/internal/catalog"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/progress"
	"github.com/Amund211/gamegate/internal/ratelimiting"
	"github.com/Amund211/gamegate/internal/replay"
	"github.com/Amund211/gamegate/internal/stats"
)

// Prints the verdict of every game in a catalog as a user would see it.
// Usage: get-progress <userID> <topic:ageTier>
func main() {
	baseURL := os.Getenv("BACKEND_API_URL")
	token := os.Getenv("BACKEND_API_TOKEN")
	if baseURL == "" || token == "" {
		log.Fatal("BACKEND_API_URL and BACKEND_API_TOKEN must be set")
	}

	if len(os.Args) < 3 {
		log.Fatal("Usage: get-progress <userID> <topic:ageTier>")
	}
	userID := os.Args[1]
	key, err := domain.ParseCatalogKey(os.Args[2])
	if err != nil {
		log.Fatalf("Invalid catalog key: %v", err)
	}

	resolver, err := catalog.NewResolver()
	if err != nil {
		log.Fatalf("Failed to load catalogs: %v", err)
	}
	games := resolver.Resolve(key)
	if len(games) == 0 {
		log.Fatalf("Unknown catalog %s", key)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	limiter := ratelimiting.NewWindowLimiter(5, time.Second, time.Now, time.After)
	progressAPI, err := progressapi.NewClient(httpClient, limiter, baseURL, token)
	if err != nil {
		log.Fatalf("Failed to create progress api client: %v", err)
	}
	entitlements := entitlement.NewClient(httpClient, baseURL, token, cache.NewBasicCache[domain.SubscriptionTier]())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := progressAPI.FetchBatch(ctx, userID, key.String())
	if err != nil {
		log.Fatalf("Failed to fetch progress: %v", err)
	}

	var tier *domain.SubscriptionTier
	if resolved, err := entitlements.Tier(ctx, userID); err != nil {
		log.Printf("Failed to get subscription tier, using freemium: %v", err)
	} else {
		tier = &resolved
	}

	store := progress.NewStore(games)
	store.Seed(records, store.Revision())
	verdicts := access.EvaluateAll(games, store, tier)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GAME\tDIFFICULTY\tVERDICT\tCOINS\tREPLAY COST")
	for i, game := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			game.ID, game.Difficulty, verdicts[i], store.Get(game.ID).TotalCoinsEarned, replay.Cost(game.Index),
		)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	summary := stats.Aggregate(ctx, games, store)
	fmt.Printf("\n%d/%d completed, %d coins, %d xp\n",
		summary.CompletedGames, summary.TotalGames, summary.CoinsEarned, summary.XPGained,
	)
}
