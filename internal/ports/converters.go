package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/gamegate/internal/app"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/reporting"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

type gameResponse struct {
	GameID      string `json:"gameId"`
	Index       int    `json:"index"`
	Difficulty  string `json:"difficulty"`
	CoinsReward int    `json:"coinsReward"`
	XPReward    int    `json:"xpReward"`
	RoutePath   string `json:"routePath"`
	IsSpecial   bool   `json:"isSpecial"`
	Verdict     string `json:"verdict"`
	CoinsEarned int    `json:"coinsEarned"`
	ReplayCost  int    `json:"replayCost"`
}

type statsResponse struct {
	TotalGames     int `json:"totalGames"`
	CompletedGames int `json:"completedGames"`
	CoinsEarned    int `json:"coinsEarned"`
	XPGained       int `json:"xpGained"`
}

type catalogResponse struct {
	Success bool           `json:"success"`
	Catalog string         `json:"catalog"`
	Games   []gameResponse `json:"games"`
	Stats   statsResponse  `json:"stats"`
	Stale   bool           `json:"stale"`
	Notice  string         `json:"notice,omitempty"`
}

type singleGameResponse struct {
	Success bool         `json:"success"`
	Game    gameResponse `json:"game"`
}

type singleStatsResponse struct {
	Success bool          `json:"success"`
	Stats   statsResponse `json:"stats"`
}

type replayResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	Cost    int    `json:"cost"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func gameToResponse(game app.GameView) gameResponse {
	return gameResponse{
		GameID:      game.Game.ID,
		Index:       game.Game.Index,
		Difficulty:  game.Game.Difficulty.String(),
		CoinsReward: game.Game.CoinsReward,
		XPReward:    game.Game.XPReward,
		RoutePath:   game.Game.RoutePath,
		IsSpecial:   game.Game.IsSpecial,
		Verdict:     game.Verdict.String(),
		CoinsEarned: game.CoinsEarned,
		ReplayCost:  game.ReplayCost,
	}
}

func statsToResponse(stats domain.Stats) statsResponse {
	return statsResponse{
		TotalGames:     stats.TotalGames,
		CompletedGames: stats.CompletedGames,
		CoinsEarned:    stats.CoinsEarned,
		XPGained:       stats.XPGained,
	}
}

func viewToResponse(view app.View) catalogResponse {
	games := make([]gameResponse, 0, len(view.Games))
	for _, game := range view.Games {
		games = append(games, gameToResponse(game))
	}

	return catalogResponse{
		Success: true,
		Catalog: view.Key.String(),
		Games:   games,
		Stats:   statsToResponse(view.Stats),
		Stale:   view.Stale,
		Notice:  view.Notice,
	}
}

func replayResultToResponse(result domain.ReplayResult) replayResponse {
	return replayResponse{
		Success: result.Confirmed(),
		GameID:  result.GameID,
		Cost:    result.Cost,
		Status:  result.Status.String(),
		Message: result.Message,
	}
}

func writeJSONResponse(ctx context.Context, w http.ResponseWriter, statusCode int, response any) {
	data, err := json.Marshal(response)
	if err != nil {
		err = fmt.Errorf("failed to marshal response: %w", err)
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to marshal response", slog.String("error", err.Error()))
		reporting.Report(ctx, err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to write response", slog.String("error", err.Error()))
	}
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, cause string) {
	writeJSONResponse(ctx, w, statusCode, errorResponse{Success: false, Cause: cause})
}
