package ports_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/ports"
	"github.com/stretchr/testify/require"
)

type replayBody struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	Cost    int    `json:"cost"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func TestMakeReplayHandler(t *testing.T) {
	t.Parallel()

	makeRequest := func(gameID string, userID string) *http.Request {
		req := newRequest(http.MethodPost, "/v1/replay/"+gameID, "", userID)
		req.SetPathValue("gameId", gameID)
		return req
	}

	t.Run("confirmed replay unlocks the game", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t, unlimitedTier, 100)
		server.complete("math:6-8:001")
		server.navigate(t, "math", "6-8")

		handler := ports.MakeReplayHandler(server.sessions, server.allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("math:6-8:001", testUserID))

		require.Equal(t, http.StatusOK, w.Code)
		response := decode[replayBody](t, w)
		require.True(t, response.Success)
		require.Equal(t, "math:6-8:001", response.GameID)
		require.Equal(t, 2, response.Cost)
		require.Equal(t, "confirmed", response.Status)
		require.NotEmpty(t, response.Message)

		getGame := ports.MakeGetGameHandler(server.sessions, server.allowedOrigins, testLogger, noopMiddleware)
		req := newRequest(http.MethodGet, "/v1/catalog/games/math:6-8:001", "", testUserID)
		req.SetPathValue("gameId", "math:6-8:001")

		w = httptest.NewRecorder()
		getGame(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		game := decode[struct {
			Game gameBody `json:"game"`
		}](t, w)
		require.Equal(t, "completed-replayable", game.Game.Verdict)

		// Buying again is confirmed without another purchase
		w = httptest.NewRecorder()
		handler(w, makeRequest("math:6-8:001", testUserID))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "confirmed", decode[replayBody](t, w).Status)
	})

	t.Run("failures", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name       string
			tier       domain.SubscriptionTier
			balance    int
			completed  []string
			navigate   bool
			gameID     string
			userID     string
			statusCode int
		}{
			{
				name:       "missing user id",
				tier:       unlimitedTier,
				balance:    100,
				navigate:   true,
				gameID:     "math:6-8:001",
				userID:     "",
				statusCode: http.StatusBadRequest,
			},
			{
				name:       "no catalog selected",
				tier:       unlimitedTier,
				balance:    100,
				completed:  []string{"math:6-8:001"},
				navigate:   false,
				gameID:     "math:6-8:001",
				userID:     testUserID,
				statusCode: http.StatusConflict,
			},
			{
				name:       "not completed",
				tier:       unlimitedTier,
				balance:    100,
				navigate:   true,
				gameID:     "math:6-8:001",
				userID:     testUserID,
				statusCode: http.StatusConflict,
			},
			{
				name:       "unknown game",
				tier:       unlimitedTier,
				balance:    100,
				navigate:   true,
				gameID:     "math:6-8:999",
				userID:     testUserID,
				statusCode: http.StatusNotFound,
			},
			{
				name:       "insufficient balance",
				tier:       unlimitedTier,
				balance:    1,
				completed:  []string{"math:6-8:001"},
				navigate:   true,
				gameID:     "math:6-8:001",
				userID:     testUserID,
				statusCode: http.StatusPaymentRequired,
			},
			{
				name:    "beyond the subscription cap",
				tier:    domain.RestrictiveTier(),
				balance: 100,
				completed: []string{
					"math:6-8:001", "math:6-8:002", "math:6-8:003",
					"math:6-8:004", "math:6-8:005", "math:6-8:006",
				},
				navigate:   true,
				gameID:     "math:6-8:006",
				userID:     testUserID,
				statusCode: http.StatusForbidden,
			},
		}

		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				t.Parallel()

				server := newTestServer(t, c.tier, c.balance)
				server.complete(c.completed...)
				if c.navigate {
					server.navigate(t, "math", "6-8")
				}

				handler := ports.MakeReplayHandler(server.sessions, server.allowedOrigins, testLogger, noopMiddleware)

				w := httptest.NewRecorder()
				handler(w, makeRequest(c.gameID, c.userID))

				require.Equal(t, c.statusCode, w.Code, w.Body.String())
				if c.statusCode == http.StatusBadRequest {
					return
				}

				response := decode[replayBody](t, w)
				require.False(t, response.Success)
				require.Equal(t, c.gameID, response.GameID)
				require.Equal(t, "failed", response.Status)
				require.NotEmpty(t, response.Message)
			})
		}
	})

	t.Run("insufficient balance explains the shortfall", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t, unlimitedTier, 1)
		server.complete("math:6-8:001")
		server.navigate(t, "math", "6-8")

		handler := ports.MakeReplayHandler(server.sessions, server.allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler(w, makeRequest("math:6-8:001", testUserID))

		require.Equal(t, http.StatusPaymentRequired, w.Code)
		require.Equal(t, "You need 2 coins to replay this game, but you only have 1.", decode[replayBody](t, w).Message)
	})
}
