package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

type Client struct {
	httpClient HttpClient
	baseURL    string
	token      string

	tiers cache.Cache[domain.SubscriptionTier]
}

func NewClient(httpClient HttpClient, baseURL string, token string, tiers cache.Cache[domain.SubscriptionTier]) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		tiers:      tiers,
	}
}

type tierResponse struct {
	Name                   string `json:"name"`
	GamesAllowedPerCatalog *int   `json:"gamesAllowedPerCatalog"`
	Unlimited              bool   `json:"unlimited"`
}

type canPlayResponse struct {
	Allowed *bool  `json:"allowed"`
	Reason  string `json:"reason"`
}

// Tier returns the user's subscription tier, cached per user.
func (c *Client) Tier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	tier, _, err := cache.GetOrFetch(ctx, c.tiers, "subscription_tier", userID, func(ctx context.Context) (domain.SubscriptionTier, error) {
		statusCode, data, err := c.get(ctx, userID, "/entitlements/tier")
		if err != nil {
			return domain.SubscriptionTier{}, err
		}
		tier, err := tierFromResponse(statusCode, data)
		if err != nil {
			reportUnexpected(ctx, err, statusCode, data)
			return domain.SubscriptionTier{}, err
		}
		return tier, nil
	})
	if err != nil {
		return domain.SubscriptionTier{}, err
	}
	return tier, nil
}

func (c *Client) CanPlayIndex(ctx context.Context, userID string, catalogKey string, completedCount int, index int) (domain.Entitlement, error) {
	query := url.Values{}
	query.Set("catalog", catalogKey)
	query.Set("completed", strconv.Itoa(completedCount))
	query.Set("index", strconv.Itoa(index))

	statusCode, data, err := c.get(ctx, userID, "/entitlements/can-play?"+query.Encode())
	if err != nil {
		return domain.Entitlement{}, err
	}

	entitlement, err := entitlementFromResponse(statusCode, data)
	if err != nil {
		reportUnexpected(ctx, err, statusCode, data)
		return domain.Entitlement{}, err
	}
	return entitlement, nil
}

func tierFromResponse(statusCode int, data []byte) (domain.SubscriptionTier, error) {
	if err := errorFromStatus(statusCode); err != nil {
		return domain.SubscriptionTier{}, err
	}

	var response tierResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return domain.SubscriptionTier{}, fmt.Errorf("failed to parse tier response: %w", err)
	}
	if response.Unlimited {
		return domain.SubscriptionTier{Name: response.Name, Unlimited: true}, nil
	}
	if response.GamesAllowedPerCatalog == nil || *response.GamesAllowedPerCatalog < 0 {
		return domain.SubscriptionTier{}, fmt.Errorf("tier response without a valid gamesAllowedPerCatalog")
	}
	return domain.SubscriptionTier{
		Name:                   response.Name,
		GamesAllowedPerCatalog: *response.GamesAllowedPerCatalog,
		Unlimited:              false,
	}, nil
}

func entitlementFromResponse(statusCode int, data []byte) (domain.Entitlement, error) {
	if err := errorFromStatus(statusCode); err != nil {
		return domain.Entitlement{}, err
	}

	var response canPlayResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return domain.Entitlement{}, fmt.Errorf("failed to parse can-play response: %w", err)
	}
	if response.Allowed == nil {
		return domain.Entitlement{}, fmt.Errorf("can-play response without allowed")
	}
	return domain.Entitlement{Allowed: *response.Allowed, Reason: response.Reason}, nil
}

func errorFromStatus(statusCode int) error {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w: entitlement service returned status code %d", domain.ErrNetwork, domain.ErrTemporarilyUnavailable, statusCode)
	}
	if statusCode != http.StatusOK {
		return fmt.Errorf("entitlement service returned status code %d", statusCode)
	}
	return nil
}

func reportUnexpected(ctx context.Context, err error, statusCode int, data []byte) {
	reporting.Report(ctx, err, map[string]string{
		"data":   string(data),
		"status": strconv.Itoa(statusCode),
	})
}

func (c *Client) get(ctx context.Context, userID string, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return -1, nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-Id", userID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return -1, nil, fmt.Errorf("%w: failed to send request: %w", domain.ErrNetwork, err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, nil, fmt.Errorf("%w: failed to read response body: %w", domain.ErrNetwork, err)
	}
	return resp.StatusCode, data, nil
}
