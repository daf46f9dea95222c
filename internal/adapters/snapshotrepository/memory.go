package snapshotrepository

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/Amund211/gamegate/internal/domain"
)

type snapshotKey struct {
	userID     string
	catalogKey string
}

type InMemory struct {
	nowFunc func() time.Time

	mu        sync.Mutex
	snapshots map[snapshotKey]Snapshot
}

func NewInMemory(nowFunc func() time.Time) *InMemory {
	return &InMemory{
		nowFunc:   nowFunc,
		snapshots: make(map[snapshotKey]Snapshot),
	}
}

func (m *InMemory) StoreSnapshot(ctx context.Context, userID string, catalogKey string, records map[string]domain.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snapshotKey{userID: userID, catalogKey: catalogKey}] = Snapshot{
		Records:  maps.Clone(records),
		StoredAt: m.nowFunc(),
	}
	return nil
}

func (m *InMemory) GetSnapshot(ctx context.Context, userID string, catalogKey string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.snapshots[snapshotKey{userID: userID, catalogKey: catalogKey}]
	if !ok {
		return Snapshot{}, domain.ErrSnapshotNotFound
	}
	return Snapshot{
		Records:  maps.Clone(snapshot.Records),
		StoredAt: snapshot.StoredAt,
	}, nil
}
