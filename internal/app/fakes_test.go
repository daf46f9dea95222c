package app_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/gamegate/internal/adapters/progressapi"
	"github.com/Amund211/gamegate/internal/adapters/snapshotrepository"
	"github.com/Amund211/gamegate/internal/app"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/Amund211/gamegate/internal/realtime/realtimetest"
)

const userID = "user-1"

var (
	mathKey    = domain.CatalogKey{Topic: "math", AgeTier: "6-8"}
	readingKey = domain.CatalogKey{Topic: "reading", AgeTier: "6-8"}
)

func makeCatalog(key domain.CatalogKey, n int) []domain.GameDescriptor {
	games := make([]domain.GameDescriptor, 0, n)
	for i := range n {
		games = append(games, domain.GameDescriptor{
			ID:          fmt.Sprintf("%s:%03d", key.String(), i+1),
			Index:       i,
			CoinsReward: 5,
			XPReward:    10,
			RoutePath:   fmt.Sprintf("/games/%s/%d", key.Topic, i+1),
		})
	}
	return games
}

type staticCatalogs map[domain.CatalogKey][]domain.GameDescriptor

func (c staticCatalogs) Resolve(key domain.CatalogKey) []domain.GameDescriptor {
	return c[key]
}

type fakeProgressAPI struct {
	mu         sync.Mutex
	records    map[string]domain.ProgressRecord
	batchErr   error
	batchCalls int
	gameCalls  int

	unlockResponse progressapi.UnlockResponse
	unlockErr      error
	unlockKeys     []string
	// If set, UnlockReplay signals unlockStarted and waits for release
	unlockStarted chan struct{}
	release       chan struct{}
}

func newFakeProgressAPI() *fakeProgressAPI {
	return &fakeProgressAPI{
		records:        make(map[string]domain.ProgressRecord),
		unlockResponse: progressapi.UnlockResponse{ReplayUnlocked: true},
	}
}

func (f *fakeProgressAPI) set(gameID string, record domain.ProgressRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[gameID] = record
}

func (f *fakeProgressAPI) setBatchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchErr = err
}

func (f *fakeProgressAPI) batchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

func (f *fakeProgressAPI) unlockCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unlockKeys...)
}

func (f *fakeProgressAPI) FetchBatch(ctx context.Context, userID string, prefix string) (map[string]domain.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	records := make(map[string]domain.ProgressRecord)
	for gameID, record := range f.records {
		if strings.HasPrefix(gameID, prefix) {
			records[gameID] = record
		}
	}
	return records, nil
}

func (f *fakeProgressAPI) FetchGame(ctx context.Context, userID string, gameID string) (domain.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gameCalls++
	record, ok := f.records[gameID]
	if !ok {
		return domain.DefaultProgressRecord(), nil
	}
	return record, nil
}

func (f *fakeProgressAPI) UnlockReplay(ctx context.Context, userID string, gameID string, cost int, idempotencyKey string) (progressapi.UnlockResponse, error) {
	f.mu.Lock()
	f.unlockKeys = append(f.unlockKeys, idempotencyKey)
	started, release := f.unlockStarted, f.release
	response, err := f.unlockResponse, f.unlockErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return progressapi.UnlockResponse{}, ctx.Err()
		}
	}

	if err == nil && response.ReplayUnlocked {
		f.mu.Lock()
		record := f.records[gameID]
		record.ReplayUnlocked = true
		f.records[gameID] = record
		f.mu.Unlock()
	}
	return response, err
}

type fakeWallet struct {
	mu        sync.Mutex
	balance   int
	err       error
	refreshes int
}

func (w *fakeWallet) Balance(ctx context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, w.err
}

func (w *fakeWallet) Refresh(ctx context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshes++
	return w.balance, w.err
}

func (w *fakeWallet) SetBalance(ctx context.Context, userID string, balance int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = balance
}

func (w *fakeWallet) state() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, w.refreshes
}

type fakeEntitlements struct {
	tier         domain.SubscriptionTier
	tierErr      error
	entitlement  domain.Entitlement
	canPlayErr   error
	canPlayCalls int
}

func (e *fakeEntitlements) Tier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	return e.tier, e.tierErr
}

func (e *fakeEntitlements) CanPlayIndex(ctx context.Context, userID string, catalogKey string, completedCount int, index int) (domain.Entitlement, error) {
	e.canPlayCalls++
	return e.entitlement, e.canPlayErr
}

type capturingSource struct {
	mu      sync.Mutex
	handler realtime.Handler
	err     error
}

func (s *capturingSource) Subscribe(ctx context.Context, userID string, handle realtime.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handle
	return s.err
}

type harness struct {
	api          *fakeProgressAPI
	wallet       *fakeWallet
	entitlements *fakeEntitlements
	snapshots    *snapshotrepository.InMemory
	source       *capturingSource
	clock        *realtimetest.FakeClock
	timeouts     chan time.Time
	deps         app.Collaborators
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		api:    newFakeProgressAPI(),
		wallet: &fakeWallet{balance: 100},
		entitlements: &fakeEntitlements{
			tier:        domain.SubscriptionTier{Name: "premium", Unlimited: true},
			entitlement: domain.Entitlement{Allowed: true},
		},
		snapshots: snapshotrepository.NewInMemory(time.Now),
		source:    &capturingSource{},
		clock:     realtimetest.NewFakeClock(),
		timeouts:  make(chan time.Time, 1),
	}

	catalogs := staticCatalogs{
		mathKey:    makeCatalog(mathKey, 4),
		readingKey: makeCatalog(readingKey, 3),
	}

	h.deps = app.Collaborators{
		Catalogs:     catalogs,
		Progress:     h.api,
		Wallet:       h.wallet,
		Entitlements: h.entitlements,
		Snapshots:    h.snapshots,
		Source:       h.source,
		Clock:        h.clock,
		AfterFunc: func(time.Duration) <-chan time.Time {
			return h.timeouts
		},
	}
	return h
}

func (h *harness) session(t *testing.T) *app.Session {
	t.Helper()

	session := app.NewSession(t.Context(), userID, h.deps, app.SessionConfig{
		ReloadDebounce: 750 * time.Millisecond,
		ReplayTimeout:  10 * time.Second,
	})
	t.Cleanup(session.Close)
	return session
}

func gameID(key domain.CatalogKey, n int) string {
	return fmt.Sprintf("%s:%03d", key.String(), n)
}
