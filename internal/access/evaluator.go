package access

import (
	"github.com/Amund211/gamegate/internal/domain"
)

type ProgressReader interface {
	Get(gameID string) domain.ProgressRecord
}

// CompletedCount counts completed games by catalog membership. Duplicate ids count once.
func CompletedCount(catalog []domain.GameDescriptor, store ProgressReader) int {
	seen := make(map[string]bool, len(catalog))
	count := 0
	for _, game := range catalog {
		if seen[game.ID] {
			continue
		}
		seen[game.ID] = true
		if store.Get(game.ID).Completed {
			count++
		}
	}
	return count
}

func resolveTier(tier *domain.SubscriptionTier) domain.SubscriptionTier {
	if tier == nil {
		return domain.RestrictiveTier()
	}
	return *tier
}

func allows(tier domain.SubscriptionTier, index int) bool {
	return tier.Unlimited || index < tier.GamesAllowedPerCatalog
}

// SubscriptionAllows reports whether tier covers the game at index, completed or not.
// Replay purchases beyond the cap are refused even for completed games.
func SubscriptionAllows(tier *domain.SubscriptionTier, index int) bool {
	return allows(resolveTier(tier), index)
}

// baseVerdict evaluates a single game without looking for the currently active game.
func baseVerdict(catalog []domain.GameDescriptor, store ProgressReader, tier domain.SubscriptionTier, index int) domain.AccessVerdict {
	if index < 0 || index >= len(catalog) {
		return domain.VerdictLockedSequential
	}

	this := store.Get(catalog[index].ID)
	covered := allows(tier, index)

	if !covered && !this.Completed {
		return domain.VerdictLockedSubscription
	}

	if index > 0 {
		previous := store.Get(catalog[index-1].ID)
		if !previous.Completed {
			return domain.VerdictLockedSequential
		}
	}

	if this.Completed {
		// Completed games beyond the cap stay visible but are never replayable
		if this.ReplayUnlocked && covered {
			return domain.VerdictCompletedReplayable
		}
		return domain.VerdictCompletedLocked
	}

	return domain.VerdictUnlockedFresh
}

// Evaluate returns the access verdict of the game at index.
//
// A nil tier is treated as the restrictive freemium tier. Out of range
// indices, including every index of an empty catalog, are locked-sequential.
func Evaluate(catalog []domain.GameDescriptor, store ProgressReader, tier *domain.SubscriptionTier, index int) domain.AccessVerdict {
	resolved := resolveTier(tier)

	verdict := baseVerdict(catalog, store, resolved, index)
	if verdict != domain.VerdictUnlockedFresh {
		return verdict
	}

	for i := range index {
		if baseVerdict(catalog, store, resolved, i) == domain.VerdictUnlockedFresh {
			// An earlier game is the active one
			return domain.VerdictUnlockedFresh
		}
	}
	return domain.VerdictUnlockedCurrentlyActive
}

// EvaluateAll returns the verdict of every game in catalog order.
func EvaluateAll(catalog []domain.GameDescriptor, store ProgressReader, tier *domain.SubscriptionTier) []domain.AccessVerdict {
	resolved := resolveTier(tier)

	verdicts := make([]domain.AccessVerdict, len(catalog))
	activeFound := false
	for i := range catalog {
		verdict := baseVerdict(catalog, store, resolved, i)
		if verdict == domain.VerdictUnlockedFresh && !activeFound {
			verdict = domain.VerdictUnlockedCurrentlyActive
			activeFound = true
		}
		verdicts[i] = verdict
	}
	return verdicts
}
