package progressapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/gamegate/internal/constants"
	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/logging"
	"github.com/Amund211/gamegate/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Expected upper bound for a single backend call, used by the limiter to
// refuse requests that cannot finish before the caller's deadline.
const maxOperationTime = 2 * time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type RequestLimiter interface {
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool
}

type UnlockResponse struct {
	ReplayUnlocked bool
	Message        string
}

type Client struct {
	httpClient HttpClient
	limiter    RequestLimiter
	baseURL    string
	token      string

	requestCount metric.Int64Counter
	tracer       trace.Tracer
}

func NewClient(httpClient HttpClient, limiter RequestLimiter, baseURL string, token string) (*Client, error) {
	const name = "gamegate/adapters/progressapi"

	requestCount, err := otel.Meter(name).Int64Counter("progressapi/request_count")
	if err != nil {
		return nil, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,

		requestCount: requestCount,
		tracer:       otel.Tracer(name),
	}, nil
}

type progressRecordResponse struct {
	FullyCompleted   bool `json:"fullyCompleted"`
	TotalCoinsEarned int  `json:"totalCoinsEarned"`
	TotalLevels      int  `json:"totalLevels"`
	ReplayUnlocked   bool `json:"replayUnlocked"`
}

func (r progressRecordResponse) toDomain() domain.ProgressRecord {
	record := domain.ProgressRecord{
		Completed:        r.FullyCompleted,
		TotalCoinsEarned: max(r.TotalCoinsEarned, 0),
		TotalLevels:      max(r.TotalLevels, 1),
		ReplayUnlocked:   r.ReplayUnlocked && r.FullyCompleted,
	}
	return record
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// FetchBatch returns the server's records for every game whose id starts with prefix.
func (c *Client) FetchBatch(ctx context.Context, userID string, prefix string) (map[string]domain.ProgressRecord, error) {
	ctx, span := c.tracer.Start(ctx, "ProgressAPI.FetchBatch")
	defer span.End()

	query := url.Values{}
	query.Set("prefix", prefix)
	status, data, err := c.do(ctx, "batch", userID, http.MethodGet, "/progress/batch?"+query.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	records, err := recordsFromBatchResponse(status, data)
	if err != nil {
		if !errors.Is(err, domain.ErrTemporarilyUnavailable) {
			reporting.Report(ctx, err, map[string]string{
				"prefix": prefix,
				"status": strconv.Itoa(status),
			})
		}
		return nil, err
	}
	return records, nil
}

func recordsFromBatchResponse(status int, data []byte) (map[string]domain.ProgressRecord, error) {
	if err := errorFromStatus(status, data); err != nil {
		return nil, err
	}

	var response map[string]progressRecordResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse batch progress response: %w", err)
	}

	records := make(map[string]domain.ProgressRecord, len(response))
	for gameID, record := range response {
		records[gameID] = record.toDomain()
	}
	return records, nil
}

// FetchGame is the point-check for one game. Unknown games get the default record.
func (c *Client) FetchGame(ctx context.Context, userID string, gameID string) (domain.ProgressRecord, error) {
	ctx, span := c.tracer.Start(ctx, "ProgressAPI.FetchGame")
	defer span.End()

	status, data, err := c.do(ctx, "game", userID, http.MethodGet, "/progress/"+url.PathEscape(gameID), nil, nil)
	if err != nil {
		return domain.ProgressRecord{}, err
	}

	record, err := recordFromGameResponse(status, data)
	if err != nil {
		if !errors.Is(err, domain.ErrTemporarilyUnavailable) {
			reporting.Report(ctx, err, map[string]string{
				"gameId": gameID,
				"status": strconv.Itoa(status),
			})
		}
		return domain.ProgressRecord{}, err
	}
	return record, nil
}

func recordFromGameResponse(status int, data []byte) (domain.ProgressRecord, error) {
	if status == http.StatusNotFound {
		return domain.DefaultProgressRecord(), nil
	}
	if err := errorFromStatus(status, data); err != nil {
		return domain.ProgressRecord{}, err
	}

	var response progressRecordResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("failed to parse game progress response: %w", err)
	}
	return response.toDomain(), nil
}

// UnlockReplay purchases a replay. The idempotency key lets the server drop
// retried purchases of the same transaction.
func (c *Client) UnlockReplay(ctx context.Context, userID string, gameID string, cost int, idempotencyKey string) (UnlockResponse, error) {
	ctx, span := c.tracer.Start(ctx, "ProgressAPI.UnlockReplay")
	defer span.End()

	body, err := json.Marshal(map[string]int{"cost": cost})
	if err != nil {
		return UnlockResponse{}, fmt.Errorf("failed to marshal unlock request: %w", err)
	}

	headers := map[string]string{
		"Content-Type":    "application/json",
		"Idempotency-Key": idempotencyKey,
	}
	status, data, err := c.do(ctx, "unlock", userID, http.MethodPost, "/replay/unlock/"+url.PathEscape(gameID), body, headers)
	if err != nil {
		return UnlockResponse{}, err
	}

	return unlockFromResponse(status, data)
}

type unlockResponse struct {
	ReplayUnlocked bool   `json:"replayUnlocked"`
	Message        string `json:"message"`
}

func unlockFromResponse(status int, data []byte) (UnlockResponse, error) {
	if status >= 200 && status < 300 {
		var response unlockResponse
		if err := json.Unmarshal(data, &response); err != nil {
			return UnlockResponse{}, fmt.Errorf("failed to parse unlock response: %w", err)
		}
		return UnlockResponse{ReplayUnlocked: response.ReplayUnlocked, Message: response.Message}, nil
	}

	if err := temporaryError(status); err != nil {
		return UnlockResponse{}, err
	}

	var response errorResponse
	// Non-JSON error bodies are rejected without a message
	_ = json.Unmarshal(data, &response)
	message := response.Error
	if message == "" {
		message = response.Message
	}

	switch status {
	case http.StatusPaymentRequired:
		return UnlockResponse{}, fmt.Errorf("%w: %w", domain.ErrInsufficientBalance, &domain.RejectionError{StatusCode: status, Message: message})
	case http.StatusForbidden:
		reason := response.Reason
		if reason == "" {
			reason = message
		}
		return UnlockResponse{}, &domain.DenialError{Reason: reason}
	case http.StatusConflict:
		return UnlockResponse{}, fmt.Errorf("%w: %w", domain.ErrAlreadyProcessing, &domain.RejectionError{StatusCode: status, Message: message})
	}

	return UnlockResponse{}, &domain.RejectionError{StatusCode: status, Message: message}
}

func temporaryError(status int) error {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w: backend returned status code %d", domain.ErrNetwork, domain.ErrTemporarilyUnavailable, status)
	}
	return nil
}

func errorFromStatus(status int, data []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if err := temporaryError(status); err != nil {
		return err
	}
	return fmt.Errorf("backend returned status code %d: %.200s", status, string(data))
}

func (c *Client) do(ctx context.Context, operation string, userID string, method string, path string, body []byte, headers map[string]string) (int, []byte, error) {
	logger := logging.FromContext(ctx)

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return -1, nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-User-Id", userID)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	var status int
	var data []byte
	start := time.Now()
	ran := c.limiter.Limit(ctx, maxOperationTime, func(ctx context.Context) {
		var resp *http.Response
		resp, err = c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			err = fmt.Errorf("%w: failed to send request: %w", domain.ErrNetwork, err)
			return
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("%w: failed to read response body: %w", domain.ErrNetwork, err)
		}
	})
	if !ran {
		logger.WarnContext(ctx, "Did not call backend due to rate limiting", "operation", operation, "ctx_error", ctx.Err())
		return -1, nil, fmt.Errorf("%w: %w: too many requests to backend", domain.ErrNetwork, domain.ErrTemporarilyUnavailable)
	}

	c.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status_code", strconv.Itoa(status)),
	))

	if err != nil {
		logger.WarnContext(ctx, "Backend request failed", "operation", operation, "error", err.Error())
		return -1, nil, err
	}

	logger.InfoContext(ctx, "Backend request completed", "operation", operation, "status", status, "duration", time.Since(start).String())
	return status, data, nil
}
