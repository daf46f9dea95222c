package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/gamegate/internal/adapters/cache"
	"github.com/Amund211/gamegate/internal/adapters/database"
	"github.com/Amund211/gamegate/internal/adapters/entitlement"
	"github.com/Amund211/gamegate/internal/adapters/progressapi"
	"github.com/Amund211/gamegate/internal/adapters/snapshotrepository"
	"github.com/Amund211/gamegate/internal/adapters/wallet"
	"github.com/Amund211/gamegate/internal/app"
	"github.com/Amund211/gamegate/internal/catalog"
	"github.com/Amund211/gamegate/internal/config"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/ports"
	"github.com/Amund211/gamegate/internal/ratelimiting"
	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/Amund211/gamegate/internal/reporting"
	"github.com/Amund211/gamegate/internal/telemetry"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "gamegate"

// Starting balance of every user when running without a wallet service
const developmentBalance = 50

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(
		logging.NewTraceLogHandler(slog.NewJSONHandler(os.Stdout, nil), ""),
	).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName)
	if err != nil {
		fail("Failed to set up OpenTelemetry", "error", err.Error())
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()
	logger.Info("Initialized OpenTelemetry")

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	resolver, err := catalog.NewResolver()
	if err != nil {
		fail("Failed to load catalogs", "error", err.Error())
	}
	logger.Info("Loaded catalogs", "count", len(resolver.Keys()))

	progressAPI, err := newProgressAPI(conf, httpClient)
	if err != nil {
		fail("Failed to initialize progress API", "error", err.Error())
	}

	walletService, err := newWallet(conf, httpClient)
	if err != nil {
		fail("Failed to initialize wallet", "error", err.Error())
	}

	entitlements, stopEntitlementCache, err := newEntitlements(conf, httpClient)
	if err != nil {
		fail("Failed to initialize entitlements", "error", err.Error())
	}
	defer stopEntitlementCache()

	snapshots, err := newSnapshotRepository(ctx, conf, logger)
	if err != nil {
		fail("Failed to initialize snapshot repository", "error", err.Error())
	}

	source, closeSource, err := newEventSource(conf, logger)
	if err != nil {
		fail("Failed to initialize event source", "error", err.Error())
	}
	defer closeSource()

	deps := app.Collaborators{
		Catalogs:     resolver,
		Progress:     progressAPI,
		Wallet:       walletService,
		Entitlements: entitlements,
		Snapshots:    snapshots,
		Source:       source,
		Clock:        realtime.SystemClock(),
		AfterFunc:    time.After,
	}
	sessionConfig := app.SessionConfig{
		ReloadDebounce: conf.ReloadDebounce(),
		ReplayTimeout:  conf.ReplayTimeout(),
	}

	sessions, stopSessions := app.NewSessionRegistry(conf.SessionIdleTTL(), func(ctx context.Context, userID string) *app.Session {
		return app.NewSession(
			logging.AddToContext(ctx, logger.With("component", "session")),
			userID,
			deps,
			sessionConfig,
		)
	})
	defer stopSessions()

	allowedOrigins, err := ports.NewDomainSuffixes(conf.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/catalog",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/catalog",
		ports.MakeNavigateHandler(
			sessions,
			allowedOrigins,
			logger.With("port", "navigate"),
			sentryMiddleware,
		),
	)
	mux.HandleFunc(
		"GET /v1/catalog",
		ports.MakeGetCatalogHandler(
			sessions,
			allowedOrigins,
			logger.With("port", "catalog"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/catalog/games/{gameId}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/catalog/games/{gameId}",
		ports.MakeGetGameHandler(
			sessions,
			allowedOrigins,
			logger.With("port", "game"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/catalog/stats",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/catalog/stats",
		ports.MakeGetStatsHandler(
			sessions,
			allowedOrigins,
			logger.With("port", "stats"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/replay/{gameId}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/replay/{gameId}",
		ports.MakeReplayHandler(
			sessions,
			allowedOrigins,
			logger.With("port", "replay"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", conf.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}

func newProgressAPI(conf config.Config, httpClient *http.Client) (app.ProgressAPI, error) {
	if conf.BackendAPIURL() == "" {
		if !conf.IsDevelopment() {
			return nil, fmt.Errorf("missing backend api url in non-development environment")
		}
		return progressapi.NewInMemory(), nil
	}

	// The backend allows 600 requests per minute per token
	limiter := ratelimiting.NewWindowLimiter(600, time.Minute, time.Now, time.After)

	client, err := progressapi.NewClient(httpClient, limiter, conf.BackendAPIURL(), conf.BackendAPIToken())
	if err != nil {
		return nil, fmt.Errorf("failed to create progress api client: %w", err)
	}
	return client, nil
}

func newWallet(conf config.Config, httpClient *http.Client) (app.Wallet, error) {
	if conf.BackendAPIURL() == "" {
		if !conf.IsDevelopment() {
			return nil, fmt.Errorf("missing backend api url in non-development environment")
		}
		return wallet.NewInMemory(developmentBalance), nil
	}

	return wallet.NewClient(httpClient, conf.BackendAPIURL(), conf.BackendAPIToken(), cache.NewBasicCache[int]()), nil
}

func newEntitlements(conf config.Config, httpClient *http.Client) (app.Entitlements, func(), error) {
	if conf.BackendAPIURL() == "" {
		if !conf.IsDevelopment() {
			return nil, nil, fmt.Errorf("missing backend api url in non-development environment")
		}
		return entitlement.NewStatic(domain.RestrictiveTier()), func() {}, nil
	}

	tiers, stop := cache.NewTTLCache[domain.SubscriptionTier](conf.EntitlementCacheTTL())
	return entitlement.NewClient(httpClient, conf.BackendAPIURL(), conf.BackendAPIToken(), tiers), stop, nil
}

func newSnapshotRepository(ctx context.Context, conf config.Config, logger *slog.Logger) (snapshotrepository.SnapshotRepository, error) {
	logger.Info("Initializing database connection")
	db, err := database.NewPostgresDatabaseFromConfig(conf)
	if err != nil {
		if conf.IsDevelopment() {
			logger.Warn("Failed to connect to database. Falling back to in-memory snapshots.", "error", err.Error())
			return snapshotrepository.NewInMemory(time.Now), nil
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Initialized database connection")

	schemaName := database.GetSchemaName(!conf.IsProduction())

	err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return snapshotrepository.NewPostgres(db, schemaName, time.Now), nil
}

func newEventSource(conf config.Config, logger *slog.Logger) (realtime.Source, func(), error) {
	switch {
	case conf.RedisAddr() != "":
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: []string{conf.RedisAddr()},
		})
		logger.Info("Using redis event source", "addr", conf.RedisAddr())
		closeRedis := func() {
			if err := rdb.Close(); err != nil {
				logger.Error("Failed to close redis client", "error", err.Error())
			}
		}
		return realtime.NewRedisSource(rdb, conf.RedisChannelPrefix()), closeRedis, nil
	case conf.SocketURL() != "":
		logger.Info("Using websocket event source", "url", conf.SocketURL())
		return realtime.NewWebsocketSource(conf.SocketURL(), conf.BackendAPIToken()), func() {}, nil
	case conf.IsDevelopment():
		logger.Warn("No event source configured. Progress only updates on navigation.")
		return realtime.NoopSource(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("missing event source in non-development environment")
	}
}
