package domain

import "fmt"

type ReplayStatus int

const (
	ReplayPending ReplayStatus = iota
	ReplayConfirmed
	ReplayFailed
)

func (s ReplayStatus) String() string {
	switch s {
	case ReplayPending:
		return "pending"
	case ReplayConfirmed:
		return "confirmed"
	case ReplayFailed:
		return "failed"
	default:
		return fmt.Sprintf("<invalid replay status>(%d)", int(s))
	}
}

// ReplayTransaction is one in-flight replay purchase.
type ReplayTransaction struct {
	ID     string
	GameID string
	Cost   int
	Status ReplayStatus
}

// ReplayResult is what the rendering layer sees for a replay request.
// Err is nil on success and otherwise matches one of the domain sentinels.
// Message is always safe to show to the user.
type ReplayResult struct {
	GameID  string
	Cost    int
	Status  ReplayStatus
	Message string
	Err     error
}

func (r ReplayResult) Confirmed() bool {
	return r.Status == ReplayConfirmed
}
