package snapshotrepository

import (
	"context"
	"time"

	"github.com/Amund211/gamegate/internal/domain"
)

// Snapshot is the last batch of progress records successfully fetched for a catalog.
type Snapshot struct {
	Records  map[string]domain.ProgressRecord
	StoredAt time.Time
}

type SnapshotRepository interface {
	StoreSnapshot(ctx context.Context, userID string, catalogKey string, records map[string]domain.ProgressRecord) error
	// GetSnapshot returns domain.ErrSnapshotNotFound when nothing was stored.
	GetSnapshot(ctx context.Context, userID string, catalogKey string) (Snapshot, error)
}
