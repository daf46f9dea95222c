package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Amund211/gamegate/internal/adapters/cache"
	"github.com/Amund211/gamegate/internal/constants"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/reporting"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads balances from the wallet service and keeps the last known
// balance per user. Push events overwrite the cached value with SetBalance.
type Client struct {
	httpClient HttpClient
	baseURL    string
	token      string

	balances cache.Cache[int]
}

func NewClient(httpClient HttpClient, baseURL string, token string, balances cache.Cache[int]) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		balances:   balances,
	}
}

func (c *Client) Balance(ctx context.Context, userID string) (int, error) {
	balance, _, err := cache.GetOrFetch(ctx, c.balances, "wallet_balance", userID, func(ctx context.Context) (int, error) {
		return c.fetchBalance(ctx, userID)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Refresh drops the cached balance and fetches it again.
func (c *Client) Refresh(ctx context.Context, userID string) (int, error) {
	cache.Invalidate(c.balances, userID)
	return c.Balance(ctx, userID)
}

func (c *Client) SetBalance(ctx context.Context, userID string, balance int) {
	cache.Set(c.balances, userID, balance)
}

type balanceResponse struct {
	Balance *int `json:"balance"`
}

func (c *Client) fetchBalance(ctx context.Context, userID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wallet/balance", nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return 0, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-Id", userID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to send request: %w", domain.ErrNetwork, err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read response body: %w", domain.ErrNetwork, err)
	}

	balance, err := balanceFromResponse(resp.StatusCode, data)
	if err != nil {
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
		})
		return 0, err
	}
	return balance, nil
}

func balanceFromResponse(statusCode int, data []byte) (int, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return 0, fmt.Errorf("%w: %w: wallet returned status code %d", domain.ErrNetwork, domain.ErrTemporarilyUnavailable, statusCode)
	}

	if statusCode != http.StatusOK {
		return 0, fmt.Errorf("wallet returned status code %d", statusCode)
	}

	var response balanceResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return 0, fmt.Errorf("failed to parse wallet response: %w", err)
	}
	if response.Balance == nil {
		return 0, fmt.Errorf("wallet response without balance")
	}
	return *response.Balance, nil
}
