package progressapi

import (
	"context"
	"strings"
	"sync"

	"github.com/Amund211/gamegate/internal/domain"
)

type userGame struct {
	userID string
	gameID string
}

// InMemory stands in for the backend in development.
type InMemory struct {
	mu      sync.Mutex
	records map[userGame]domain.ProgressRecord
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[userGame]domain.ProgressRecord),
	}
}

func (m *InMemory) SetRecord(userID string, gameID string, record domain.ProgressRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userGame{userID: userID, gameID: gameID}] = record
}

func (m *InMemory) FetchBatch(ctx context.Context, userID string, prefix string) (map[string]domain.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make(map[string]domain.ProgressRecord)
	for key, record := range m.records {
		if key.userID == userID && strings.HasPrefix(key.gameID, prefix) {
			records[key.gameID] = record
		}
	}
	return records, nil
}

func (m *InMemory) FetchGame(ctx context.Context, userID string, gameID string) (domain.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[userGame{userID: userID, gameID: gameID}]
	if !ok {
		return domain.DefaultProgressRecord(), nil
	}
	return record, nil
}

func (m *InMemory) UnlockReplay(ctx context.Context, userID string, gameID string, cost int, idempotencyKey string) (UnlockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userGame{userID: userID, gameID: gameID}
	record, ok := m.records[key]
	if !ok || !record.Completed {
		return UnlockResponse{}, &domain.RejectionError{StatusCode: 400, Message: "Game has not been completed"}
	}
	record.ReplayUnlocked = true
	m.records[key] = record
	return UnlockResponse{ReplayUnlocked: true}, nil
}
