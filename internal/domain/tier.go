package domain

// FreemiumGamesPerCatalog is the cap applied when no tier could be resolved.
const FreemiumGamesPerCatalog = 5

type SubscriptionTier struct {
	Name                   string
	GamesAllowedPerCatalog int
	Unlimited              bool
}

// RestrictiveTier is used whenever the user's tier is unknown.
func RestrictiveTier() SubscriptionTier {
	return SubscriptionTier{
		Name:                   "freemium",
		GamesAllowedPerCatalog: FreemiumGamesPerCatalog,
		Unlimited:              false,
	}
}

// Entitlement is the entitlement service's answer for one catalog position.
type Entitlement struct {
	Allowed bool
	Reason  string
}
