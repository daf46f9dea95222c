package progress

import (
	"fmt"

	"github.com/Amund211/gamegate/internal/domain"
)

// Revision counts local mutations of a Store. A reload remembers the revision
// it started at so the store can tell which games changed while it was in flight.
type Revision uint64

type entry struct {
	record    domain.ProgressRecord
	touchedAt Revision
}

// Store holds the progression state of one catalog within one navigation context.
//
// NOTE: Store is not safe for concurrent use. Callers serialize access.
type Store struct {
	catalogIDs []string
	entries    map[string]entry
	revision   Revision
}

func NewStore(catalog []domain.GameDescriptor) *Store {
	ids := make([]string, 0, len(catalog))
	for _, game := range catalog {
		ids = append(ids, game.ID)
	}

	return &Store{
		catalogIDs: ids,
		entries:    make(map[string]entry, len(ids)),
		revision:   0,
	}
}

func (s *Store) Revision() Revision {
	return s.revision
}

// Get returns the record for gameID, or the default record for unknown ids.
func (s *Store) Get(gameID string) domain.ProgressRecord {
	e, ok := s.entries[gameID]
	if !ok {
		return domain.DefaultProgressRecord()
	}
	return e.record
}

// CompletedCount counts every completed record in the store, catalog member or not.
func (s *Store) CompletedCount() int {
	count := 0
	for _, e := range s.entries {
		if e.record.Completed {
			count++
		}
	}
	return count
}

// Seed replaces the store content with a batch of authoritative records.
//
// asOf is the revision observed when the batch fetch started. Catalog games
// missing from records fall back to the default record. Completion observed
// earlier in this context is never reverted, and games mutated locally after
// asOf keep their local replay state.
func (s *Store) Seed(records map[string]domain.ProgressRecord, asOf Revision) {
	entries := make(map[string]entry, max(len(records), len(s.catalogIDs)))

	for gameID, incoming := range records {
		entries[gameID] = s.merged(gameID, incoming, asOf)
	}

	for _, gameID := range s.catalogIDs {
		if _, ok := entries[gameID]; ok {
			continue
		}
		entries[gameID] = s.merged(gameID, domain.DefaultProgressRecord(), asOf)
	}

	// Locally observed completions outside the batch and the catalog survive too
	for gameID, current := range s.entries {
		if _, ok := entries[gameID]; ok {
			continue
		}
		if current.record.Completed {
			entries[gameID] = current
		}
	}

	s.entries = entries
}

// Merge applies one authoritative record, e.g. from a point-check, with the same rules as Seed.
func (s *Store) Merge(gameID string, incoming domain.ProgressRecord, asOf Revision) {
	s.entries[gameID] = s.merged(gameID, incoming, asOf)
}

func (s *Store) merged(gameID string, incoming domain.ProgressRecord, asOf Revision) entry {
	current, known := s.entries[gameID]
	if !known {
		current = entry{record: domain.DefaultProgressRecord(), touchedAt: 0}
	}
	local := current.record
	localIsNewer := known && current.touchedAt > asOf

	result := incoming
	if result.TotalCoinsEarned < 0 {
		result.TotalCoinsEarned = 0
	}
	if result.TotalLevels < 1 {
		result.TotalLevels = max(local.TotalLevels, 1)
	}

	if local.Completed && !incoming.Completed {
		// Stale or reordered data; completion is monotonic within a context
		result.Completed = true
		result.TotalCoinsEarned = max(local.TotalCoinsEarned, result.TotalCoinsEarned)
		result.ReplayUnlocked = local.ReplayUnlocked
	}

	if localIsNewer && local.Completed {
		result.ReplayUnlocked = local.ReplayUnlocked
		result.TotalCoinsEarned = max(local.TotalCoinsEarned, result.TotalCoinsEarned)
	}

	if !result.Completed {
		result.ReplayUnlocked = false
	}

	return entry{record: result, touchedAt: current.touchedAt}
}

func (s *Store) touch(gameID string, record domain.ProgressRecord) {
	s.revision++
	s.entries[gameID] = entry{record: record, touchedAt: s.revision}
}

// ApplyCompletion marks gameID completed. Coins are only added the first time
// the game is seen completed. Returns true if the game was not completed before.
func (s *Store) ApplyCompletion(gameID string, coinsEarned int) bool {
	record := s.Get(gameID)
	if record.Completed {
		return false
	}

	record.Completed = true
	record.TotalCoinsEarned += max(coinsEarned, 0)
	s.touch(gameID, record)
	return true
}

// ApplyReplayGranted unlocks a replay. Granting twice is a no-op.
func (s *Store) ApplyReplayGranted(gameID string) error {
	record := s.Get(gameID)
	if !record.Completed {
		return fmt.Errorf("%w: replay granted for game %s which is not completed", domain.ErrInvalidTransition, gameID)
	}

	record.ReplayUnlocked = true
	s.touch(gameID, record)
	return nil
}

func (s *Store) ApplyReplayConsumed(gameID string) {
	record := s.Get(gameID)
	record.ReplayUnlocked = false
	s.touch(gameID, record)
}
