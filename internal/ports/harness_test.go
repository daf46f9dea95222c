package ports_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amund211/gamegate/internal/adapters/entitlement"
	"github.com/Amund211/gamegate/internal/adapters/progressapi"
	"github.com/Amund211/gamegate/internal/adapters/snapshotrepository"
	"github.com/Amund211/gamegate/internal/adapters/wallet"
	"github.com/Amund211/gamegate/internal/app"
	"github.com/Amund211/gamegate/internal/catalog"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/ports"
	"github.com/Amund211/gamegate/internal/realtime"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1234"

var (
	testLogger     = slog.New(slog.NewTextHandler(io.Discard, nil))
	noopMiddleware = func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h(w, r)
		}
	}
	unlimitedTier = domain.SubscriptionTier{Name: "family", Unlimited: true}
)

type testServer struct {
	progress       *progressapi.InMemory
	sessions       *app.SessionRegistry
	allowedOrigins *ports.DomainSuffixes
}

func newTestServer(t *testing.T, tier domain.SubscriptionTier, balance int) *testServer {
	t.Helper()

	resolver, err := catalog.NewResolver()
	require.NoError(t, err)

	allowedOrigins, err := ports.NewDomainSuffixes("gamegate.app")
	require.NoError(t, err)

	progress := progressapi.NewInMemory()
	deps := app.Collaborators{
		Catalogs:     resolver,
		Progress:     progress,
		Wallet:       wallet.NewInMemory(balance),
		Entitlements: entitlement.NewStatic(tier),
		Snapshots:    snapshotrepository.NewInMemory(time.Now),
		Source:       realtime.NoopSource(),
		Clock:        realtime.SystemClock(),
		AfterFunc:    time.After,
	}
	config := app.SessionConfig{
		ReloadDebounce: 2 * time.Second,
		ReplayTimeout:  5 * time.Second,
	}

	sessions, stop := app.NewSessionRegistry(time.Hour, func(ctx context.Context, userID string) *app.Session {
		return app.NewSession(ctx, userID, deps, config)
	})
	t.Cleanup(stop)

	return &testServer{
		progress:       progress,
		sessions:       sessions,
		allowedOrigins: allowedOrigins,
	}
}

func (s *testServer) complete(gameIDs ...string) {
	for _, gameID := range gameIDs {
		s.progress.SetRecord(testUserID, gameID, domain.ProgressRecord{
			Completed:        true,
			TotalCoinsEarned: 5,
			TotalLevels:      1,
		})
	}
}

func (s *testServer) navigate(t *testing.T, topic, ageTier string) {
	t.Helper()

	handler := ports.MakeNavigateHandler(s.sessions, s.allowedOrigins, testLogger, noopMiddleware)
	body := `{"topic":"` + topic + `","ageTier":"` + ageTier + `"}`

	w := httptest.NewRecorder()
	handler(w, newRequest(http.MethodPost, "/v1/catalog", body, testUserID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func newRequest(method, target, body, userID string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

type errorBody struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

type gameBody struct {
	GameID      string `json:"gameId"`
	Index       int    `json:"index"`
	Difficulty  string `json:"difficulty"`
	RoutePath   string `json:"routePath"`
	IsSpecial   bool   `json:"isSpecial"`
	Verdict     string `json:"verdict"`
	CoinsEarned int    `json:"coinsEarned"`
	ReplayCost  int    `json:"replayCost"`
}

type statsBody struct {
	TotalGames     int `json:"totalGames"`
	CompletedGames int `json:"completedGames"`
	CoinsEarned    int `json:"coinsEarned"`
	XPGained       int `json:"xpGained"`
}

type catalogBody struct {
	Success bool       `json:"success"`
	Catalog string     `json:"catalog"`
	Games   []gameBody `json:"games"`
	Stats   statsBody  `json:"stats"`
	Stale   bool       `json:"stale"`
	Notice  string     `json:"notice"`
}
