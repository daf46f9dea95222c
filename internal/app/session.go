package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/gamegate/internal/access"
	"github.com/Amund211/gamegate/internal/adapters/progressapi"
	"github.com/Amund211/gamegate/internal/adapters/snapshotrepository"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/progress"
	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/Amund211/gamegate/internal/replay"
	"github.com/Amund211/gamegate/internal/reporting"
	"github.com/Amund211/gamegate/internal/stats"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrSessionClosed = errors.New("session closed")

const (
	reloadKey = "reload"

	// Storing a snapshot must not hold up the caller for long
	snapshotStoreTimeout = 1 * time.Second

	noticeSnapshot    = "We could not reach the server. Showing your last saved progress while we retry."
	noticeUnavailable = "Your progress could not be loaded. Retrying shortly."
)

type CatalogResolver interface {
	Resolve(key domain.CatalogKey) []domain.GameDescriptor
}

type ProgressAPI interface {
	FetchBatch(ctx context.Context, userID string, prefix string) (map[string]domain.ProgressRecord, error)
	FetchGame(ctx context.Context, userID string, gameID string) (domain.ProgressRecord, error)
	UnlockReplay(ctx context.Context, userID string, gameID string, cost int, idempotencyKey string) (progressapi.UnlockResponse, error)
}

type Wallet interface {
	Balance(ctx context.Context, userID string) (int, error)
	Refresh(ctx context.Context, userID string) (int, error)
	SetBalance(ctx context.Context, userID string, balance int)
}

type Entitlements interface {
	Tier(ctx context.Context, userID string) (domain.SubscriptionTier, error)
	CanPlayIndex(ctx context.Context, userID string, catalogKey string, completedCount int, index int) (domain.Entitlement, error)
}

// Collaborators are the external services a session talks to.
type Collaborators struct {
	Catalogs     CatalogResolver
	Progress     ProgressAPI
	Wallet       Wallet
	Entitlements Entitlements
	Snapshots    snapshotrepository.SnapshotRepository
	Source       realtime.Source

	// Clock drives debounced reloads
	Clock realtime.Clock
	// AfterFunc drives the replay purchase timeout
	AfterFunc func(time.Duration) <-chan time.Time
}

type SessionConfig struct {
	ReloadDebounce time.Duration
	ReplayTimeout  time.Duration
}

type GameView struct {
	Game        domain.GameDescriptor
	Verdict     domain.AccessVerdict
	CoinsEarned int
	ReplayCost  int
}

type View struct {
	Key   domain.CatalogKey
	Games []GameView
	Stats domain.Stats

	// Stale is set while the games are shown from a snapshot or defaults
	// because the last batch load failed
	Stale  bool
	Notice string
}

// Session is the progression state of one user. It owns the progress store
// of the catalog the user is currently looking at.
//
// Every store access holds mu. A navigation replaces the store and bumps
// generation so results of work started for an earlier load are dropped.
type Session struct {
	userID    string
	deps      Collaborators
	guard     *replay.Guard
	executor  *replay.Executor
	debouncer *realtime.Debouncer

	// Carries the session logger and reporting hub into work not tied to a request
	baseCtx    context.Context
	cancel     context.CancelFunc
	background sync.WaitGroup

	mu         sync.Mutex
	started    bool
	closed     bool
	generation uint64
	key        domain.CatalogKey
	catalog    []domain.GameDescriptor
	positions  map[string]int
	store      *progress.Store
	tier       *domain.SubscriptionTier
	stale      bool
	notice     string
}

func NewSession(ctx context.Context, userID string, deps Collaborators, config SessionConfig) *Session {
	logger := logging.FromContext(ctx).With(
		slog.String("component", "session"),
		slog.String("userId", userID),
	)
	baseCtx := logging.AddToContext(reporting.Detached(ctx), logger)
	baseCtx = reporting.SetUserIDInContext(baseCtx, userID)
	baseCtx, cancel := context.WithCancel(baseCtx)

	return &Session{
		userID:    userID,
		deps:      deps,
		guard:     replay.NewGuard(),
		executor:  replay.NewExecutor(config.ReplayTimeout, deps.AfterFunc),
		debouncer: realtime.NewDebouncer(deps.Clock, config.ReloadDebounce),

		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

func (s *Session) UserID() string {
	return s.userID
}

// Start subscribes to the user's push channel. Starting twice is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	err := s.deps.Source.Subscribe(s.baseCtx, s.userID, s.HandleEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to progress events: %w", err)
	}
	return nil
}

// Close stops the push subscription and drops pending reloads and point-checks.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.debouncer.CancelAll()
	s.mu.Unlock()

	s.cancel()
	s.background.Wait()
}

func positionsOf(catalog []domain.GameDescriptor) map[string]int {
	positions := make(map[string]int, len(catalog))
	for i, game := range catalog {
		if _, ok := positions[game.ID]; ok {
			continue
		}
		positions[game.ID] = i
	}
	return positions
}

// Navigate makes key the current catalog and loads its progress.
//
// Navigating to a different catalog replaces the store and cancels reloads
// of the previous one. Navigating to the current catalog refreshes it in
// place. A failed load is not an error: the view falls back to the last
// snapshot, is marked stale and one retry is scheduled.
func (s *Session) Navigate(ctx context.Context, key domain.CatalogKey) (View, error) {
	logger := logging.FromContext(ctx)
	catalog := s.deps.Catalogs.Resolve(key)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return View{}, ErrSessionClosed
	}
	s.generation++
	gen := s.generation
	s.debouncer.CancelAll()
	if s.store == nil || s.key != key {
		s.key = key
		s.catalog = catalog
		s.positions = positionsOf(catalog)
		s.store = progress.NewStore(catalog)
		s.tier = nil
		s.stale = false
		s.notice = ""
	}
	asOf := s.store.Revision()
	s.mu.Unlock()

	if len(catalog) == 0 {
		logger.InfoContext(ctx, "Navigated to an empty catalog", slog.String("catalog", key.String()))
		return s.View(ctx)
	}

	tier := s.fetchTier(ctx)
	records, err := s.deps.Progress.FetchBatch(ctx, s.userID, key.String())

	var snapshot *snapshotrepository.Snapshot
	if err != nil {
		logger.WarnContext(ctx, "Failed to load progress", slog.String("catalog", key.String()), slog.String("error", err.Error()))
		snapshot = s.loadSnapshot(ctx, key)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		recordReload(ctx, "superseded")
		return s.View(ctx)
	}
	s.tier = tier
	if err == nil {
		s.store.Seed(records, asOf)
		s.stale = false
		s.notice = ""
	} else {
		s.stale = true
		s.notice = noticeUnavailable
		if snapshot != nil {
			s.store.Seed(snapshot.Records, asOf)
			s.notice = noticeSnapshot
		}
		s.scheduleReloadLocked(gen)
	}
	view := s.viewLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		recordReload(ctx, "failed")
		return view, nil
	}

	recordReload(ctx, "success")
	s.storeSnapshot(ctx, key, records)
	return view, nil
}

func recordReload(ctx context.Context, result string) {
	metrics.reloads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// fetchTier returns nil when the tier could not be resolved, which the evaluator treats as freemium.
func (s *Session) fetchTier(ctx context.Context) *domain.SubscriptionTier {
	tier, err := s.deps.Entitlements.Tier(ctx, s.userID)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to get subscription tier, using freemium", slog.String("error", err.Error()))
		return nil
	}
	return &tier
}

func (s *Session) loadSnapshot(ctx context.Context, key domain.CatalogKey) *snapshotrepository.Snapshot {
	snapshot, err := s.deps.Snapshots.GetSnapshot(ctx, s.userID, key.String())
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil
	} else if err != nil {
		// NOTE: SnapshotRepository implementations handle their own error reporting
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to get progress snapshot", slog.String("error", err.Error()))
		return nil
	}
	return &snapshot
}

func (s *Session) storeSnapshot(ctx context.Context, key domain.CatalogKey, records map[string]domain.ProgressRecord) {
	// Ignore cancellations from the request context and try to store the data anyway
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotStoreTimeout)
	defer cancel()

	err := s.deps.Snapshots.StoreSnapshot(storeCtx, s.userID, key.String(), records)
	if err != nil {
		// NOTE: SnapshotRepository implementations handle their own error reporting
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to store progress snapshot", slog.String("error", err.Error()))
	}
}

// scheduleReloadLocked debounces a batch reload for the load generation gen.
// Callers hold mu.
func (s *Session) scheduleReloadLocked(gen uint64) {
	s.debouncer.Schedule(reloadKey, func() {
		s.reload(s.baseCtx, gen)
	})
}

func (s *Session) reload(ctx context.Context, gen uint64) {
	logger := logging.FromContext(ctx)

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return
	}
	key := s.key
	asOf := s.store.Revision()
	s.mu.Unlock()

	records, err := s.deps.Progress.FetchBatch(ctx, s.userID, key.String())

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		logger.DebugContext(ctx, "Discarding reload for a previous load", slog.String("catalog", key.String()))
		recordReload(ctx, "superseded")
		return
	}
	if err != nil {
		s.mu.Unlock()
		logger.WarnContext(ctx, "Debounced reload failed", slog.String("catalog", key.String()), slog.String("error", err.Error()))
		recordReload(ctx, "failed")
		return
	}
	s.store.Seed(records, asOf)
	s.stale = false
	s.notice = ""
	s.mu.Unlock()

	recordReload(ctx, "success")
	s.storeSnapshot(ctx, key, records)
}

func (s *Session) viewLocked(ctx context.Context) View {
	verdicts := access.EvaluateAll(s.catalog, s.store, s.tier)

	games := make([]GameView, len(s.catalog))
	for i, game := range s.catalog {
		games[i] = GameView{
			Game:        game,
			Verdict:     verdicts[i],
			CoinsEarned: s.store.Get(game.ID).TotalCoinsEarned,
			ReplayCost:  replay.Cost(game.Index),
		}
	}

	return View{
		Key:    s.key,
		Games:  games,
		Stats:  stats.Aggregate(ctx, s.catalog, s.store),
		Stale:  s.stale,
		Notice: s.notice,
	}
}

// View returns the current catalog without loading anything.
func (s *Session) View(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return View{}, domain.ErrNoCatalog
	}
	return s.viewLocked(ctx), nil
}

func (s *Session) Verdict(ctx context.Context, gameID string) (GameView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return GameView{}, domain.ErrNoCatalog
	}
	position, ok := s.positions[gameID]
	if !ok {
		return GameView{}, fmt.Errorf("%w: %s", domain.ErrGameNotFound, gameID)
	}

	game := s.catalog[position]
	return GameView{
		Game:        game,
		Verdict:     access.Evaluate(s.catalog, s.store, s.tier, position),
		CoinsEarned: s.store.Get(game.ID).TotalCoinsEarned,
		ReplayCost:  replay.Cost(game.Index),
	}, nil
}

func (s *Session) Stats(ctx context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return domain.Stats{}, domain.ErrNoCatalog
	}
	return stats.Aggregate(ctx, s.catalog, s.store), nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
