package wallet

import (
	"context"
	"sync"
)

// InMemory is a wallet where every user starts with the same balance.
type InMemory struct {
	mu       sync.Mutex
	initial  int
	balances map[string]int
}

func NewInMemory(initial int) *InMemory {
	return &InMemory{
		initial:  initial,
		balances: make(map[string]int),
	}
}

func (w *InMemory) Balance(ctx context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance, ok := w.balances[userID]
	if !ok {
		return w.initial, nil
	}
	return balance, nil
}

func (w *InMemory) Refresh(ctx context.Context, userID string) (int, error) {
	return w.Balance(ctx, userID)
}

func (w *InMemory) SetBalance(ctx context.Context, userID string, balance int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.balances[userID] = balance
}
