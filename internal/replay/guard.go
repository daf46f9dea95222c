package replay

import (
	"fmt"
	"sync"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/google/uuid"
)

// Guard allows at most one pending replay transaction per game.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]*domain.ReplayTransaction
}

func NewGuard() *Guard {
	return &Guard{
		inFlight: make(map[string]*domain.ReplayTransaction),
	}
}

// Begin claims gameID and returns a pending transaction, or ErrAlreadyProcessing
// if another transaction for the same game has not finished yet.
func (g *Guard) Begin(gameID string, cost int) (*domain.ReplayTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inFlight[gameID]; ok {
		return nil, fmt.Errorf("%w: replay for game %s", domain.ErrAlreadyProcessing, gameID)
	}

	tx := &domain.ReplayTransaction{
		ID:     uuid.NewString(),
		GameID: gameID,
		Cost:   cost,
		Status: domain.ReplayPending,
	}
	g.inFlight[gameID] = tx
	return tx, nil
}

// Finish records the final status of tx and releases its game.
// Claims are only released here, once the purchase has answered.
func (g *Guard) Finish(tx *domain.ReplayTransaction, status domain.ReplayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx.Status = status
	if current, ok := g.inFlight[tx.GameID]; ok && current == tx {
		delete(g.inFlight, tx.GameID)
	}
}

func (g *Guard) InFlight(gameID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.inFlight[gameID]
	return ok
}
