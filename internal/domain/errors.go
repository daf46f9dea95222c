package domain

import "errors"

var (
	ErrNetwork                = errors.New("network error")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAlreadyProcessing      = errors.New("already processing")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrSubscriptionDenied     = errors.New("subscription denied")
	ErrNotCompleted           = errors.New("game not completed")
	ErrGameNotFound           = errors.New("game not found")
	ErrNoCatalog              = errors.New("no catalog selected")
	ErrSnapshotNotFound       = errors.New("snapshot not found")
)

// DenialError carries the entitlement service's reason for refusing access.
// It matches ErrSubscriptionDenied with errors.Is.
type DenialError struct {
	Reason string
}

func (e *DenialError) Error() string {
	if e.Reason == "" {
		return ErrSubscriptionDenied.Error()
	}
	return ErrSubscriptionDenied.Error() + ": " + e.Reason
}

func (e *DenialError) Unwrap() error {
	return ErrSubscriptionDenied
}

// RejectionError is a replay purchase the backend refused. Message is the
// server's own wording, if it sent one.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return "replay unlock rejected"
	}
	return "replay unlock rejected: " + e.Message
}
