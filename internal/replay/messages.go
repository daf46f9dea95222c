package replay

import (
	"errors"
	"fmt"

	"github.com/Amund211/gamegate/internal/domain"
)

const (
	messageRetry           = "Something went wrong. Please try again."
	messageTimeout         = "Network timeout. Please check your connection and try again."
	messageProcessing      = "This replay is already being processed."
	messageNotCompleted    = "Finish this game before replaying it."
	messageUpgrade         = "Upgrade your subscription to play this game."
	messageGameNotFound    = "This game is not available."
	messageConfirmed       = "Replay unlocked!"
	messageAlreadyUnlocked = "Replay is already unlocked."
)

func ConfirmedMessage(alreadyUnlocked bool) string {
	if alreadyUnlocked {
		return messageAlreadyUnlocked
	}
	return messageConfirmed
}

func InsufficientBalanceMessage(cost, balance int) string {
	return fmt.Sprintf("You need %d coins to replay this game, but you only have %d.", cost, balance)
}

// UserMessage turns a replay failure into text that is safe to show to the user.
func UserMessage(err error) string {
	var denial *domain.DenialError
	if errors.As(err, &denial) {
		if denial.Reason != "" {
			return denial.Reason
		}
		return messageUpgrade
	}

	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		if rejection.Message != "" {
			return rejection.Message
		}
		return messageRetry
	}

	switch {
	case errors.Is(err, ErrTimeout):
		return messageTimeout
	case errors.Is(err, domain.ErrAlreadyProcessing):
		return messageProcessing
	case errors.Is(err, domain.ErrNotCompleted):
		return messageNotCompleted
	case errors.Is(err, domain.ErrSubscriptionDenied):
		return messageUpgrade
	case errors.Is(err, domain.ErrGameNotFound), errors.Is(err, domain.ErrNoCatalog):
		return messageGameNotFound
	default:
		return messageRetry
	}
}
