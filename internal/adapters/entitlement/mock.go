package entitlement

import (
	"context"
	"fmt"

	"github.com/Amund211/gamegate/internal/domain"
)

// Static grants every user the same tier. Used in development.
type Static struct {
	tier domain.SubscriptionTier
}

func NewStatic(tier domain.SubscriptionTier) *Static {
	return &Static{tier: tier}
}

func (s *Static) Tier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	return s.tier, nil
}

func (s *Static) CanPlayIndex(ctx context.Context, userID string, catalogKey string, completedCount int, index int) (domain.Entitlement, error) {
	if s.tier.Unlimited || index < s.tier.GamesAllowedPerCatalog {
		return domain.Entitlement{Allowed: true}, nil
	}
	return domain.Entitlement{
		Allowed: false,
		Reason:  fmt.Sprintf("Your %s plan includes the first %d games of each topic. Upgrade to keep playing.", s.tier.Name, s.tier.GamesAllowedPerCatalog),
	}, nil
}
