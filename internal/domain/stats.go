package domain

type Stats struct {
	TotalGames     int
	CompletedGames int
	CoinsEarned    int
	XPGained       int
}
