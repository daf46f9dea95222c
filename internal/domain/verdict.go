package domain

import "fmt"

type AccessVerdict int

const (
	VerdictLockedSequential AccessVerdict = iota
	VerdictLockedSubscription
	VerdictUnlockedFresh
	VerdictUnlockedCurrentlyActive
	VerdictCompletedLocked
	VerdictCompletedReplayable
)

func (v AccessVerdict) String() string {
	switch v {
	case VerdictLockedSequential:
		return "locked-sequential"
	case VerdictLockedSubscription:
		return "locked-subscription"
	case VerdictUnlockedFresh:
		return "unlocked-fresh"
	case VerdictUnlockedCurrentlyActive:
		return "unlocked-currently-active"
	case VerdictCompletedLocked:
		return "completed-locked"
	case VerdictCompletedReplayable:
		return "completed-replayable"
	default:
		return fmt.Sprintf("<invalid access verdict>(%d)", int(v))
	}
}

func (v AccessVerdict) IsPlayable() bool {
	return v == VerdictUnlockedFresh || v == VerdictUnlockedCurrentlyActive || v == VerdictCompletedReplayable
}

func (v AccessVerdict) IsCompleted() bool {
	return v == VerdictCompletedLocked || v == VerdictCompletedReplayable
}
