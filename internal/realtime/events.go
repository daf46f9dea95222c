package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEventType = errors.New("unknown event type")

type EventType string

const (
	EventGameCompleted  EventType = "game-completed"
	EventGameReplayed   EventType = "game-replayed"
	EventWalletUpdated  EventType = "wallet-updated"
	EventProgressReload EventType = "progress-reload"
)

type GameCompleted struct {
	GameID      string
	CoinsEarned int
	// Nil means the game was fully completed
	FullyCompleted *bool
	NewBalance     *int
}

// IsFullyCompleted treats a missing flag as completed; only an explicit false is partial progress.
func (e GameCompleted) IsFullyCompleted() bool {
	return e.FullyCompleted == nil || *e.FullyCompleted
}

type GameReplayed struct {
	GameID         string
	ReplayUnlocked bool
}

type WalletUpdated struct {
	Balance int
}

// ProgressReload asks for a batch reload. An empty Prefix applies to any catalog.
type ProgressReload struct {
	Prefix string
}

// Event is one message from the push channel. Exactly one payload is set, matching Type.
type Event struct {
	Type           EventType
	GameCompleted  *GameCompleted
	GameReplayed   *GameReplayed
	WalletUpdated  *WalletUpdated
	ProgressReload *ProgressReload
}

type envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type gameCompletedData struct {
	GameID         string `json:"gameId"`
	CoinsEarned    int    `json:"coinsEarned"`
	FullyCompleted *bool  `json:"fullyCompleted"`
	NewBalance     *int   `json:"newBalance"`
}

type gameReplayedData struct {
	GameID         string `json:"gameId"`
	ReplayUnlocked bool   `json:"replayUnlocked"`
}

type walletUpdatedData struct {
	Balance *int `json:"balance"`
}

type progressReloadData struct {
	Prefix string `json:"prefix"`
}

func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("failed to parse event envelope: %w", err)
	}

	switch env.Type {
	case EventGameCompleted:
		var payload gameCompletedData
		if err := unmarshalData(env.Data, &payload); err != nil {
			return Event{}, err
		}
		if payload.GameID == "" {
			return Event{}, fmt.Errorf("%s event without gameId", env.Type)
		}
		return Event{
			Type: env.Type,
			GameCompleted: &GameCompleted{
				GameID:         payload.GameID,
				CoinsEarned:    payload.CoinsEarned,
				FullyCompleted: payload.FullyCompleted,
				NewBalance:     payload.NewBalance,
			},
		}, nil
	case EventGameReplayed:
		var payload gameReplayedData
		if err := unmarshalData(env.Data, &payload); err != nil {
			return Event{}, err
		}
		if payload.GameID == "" {
			return Event{}, fmt.Errorf("%s event without gameId", env.Type)
		}
		return Event{
			Type: env.Type,
			GameReplayed: &GameReplayed{
				GameID:         payload.GameID,
				ReplayUnlocked: payload.ReplayUnlocked,
			},
		}, nil
	case EventWalletUpdated:
		var payload walletUpdatedData
		if err := unmarshalData(env.Data, &payload); err != nil {
			return Event{}, err
		}
		if payload.Balance == nil {
			return Event{}, fmt.Errorf("%s event without balance", env.Type)
		}
		return Event{
			Type:          env.Type,
			WalletUpdated: &WalletUpdated{Balance: *payload.Balance},
		}, nil
	case EventProgressReload:
		var payload progressReloadData
		if len(env.Data) > 0 {
			if err := unmarshalData(env.Data, &payload); err != nil {
				return Event{}, err
			}
		}
		return Event{
			Type:           env.Type,
			ProgressReload: &ProgressReload{Prefix: payload.Prefix},
		}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}

func unmarshalData(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return fmt.Errorf("event without data")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse event data: %w", err)
	}
	return nil
}
