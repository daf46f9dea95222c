package domain

// ProgressRecord is the per-game progression state.
// ReplayUnlocked is only meaningful when Completed is set.
type ProgressRecord struct {
	Completed        bool
	TotalCoinsEarned int
	TotalLevels      int
	ReplayUnlocked   bool
}

func DefaultProgressRecord() ProgressRecord {
	return ProgressRecord{
		Completed:        false,
		TotalCoinsEarned: 0,
		TotalLevels:      1,
		ReplayUnlocked:   false,
	}
}
