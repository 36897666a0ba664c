// Package gpaapi implements the GPA backend API client.
// This package handles all communication with the backend that owns users,
// semesters and courses: authentication, CRUD, GPA summaries and the shared
// course catalog.
package gpaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/pkg/circuitbreaker"
	"github.com/gpa-hub/gpa-tracker/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the GPA backend client.
type ClientConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000
	BaseURL string

	// Token is a pre-issued bearer token. Login replaces it.
	Token string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for outgoing request throttling
	RateLimiterConfig RateLimiterConfig

	// MaxAttempts is the number of attempts per request, first one included
	MaxAttempts int

	// RetryInitialDelay is the backoff before the first retry
	RetryInitialDelay time.Duration

	// BreakerFailureThreshold opens the circuit after this many consecutive failures
	BreakerFailureThreshold int

	// BreakerTimeout is how long the circuit stays open
	BreakerTimeout time.Duration

	// MaxConcurrency bounds parallel requests during transcript fan-out
	MaxConcurrency int

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables per-request debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:                 baseURL,
		Timeout:                 15 * time.Second,
		RateLimiterConfig:       DefaultRateLimiterConfig(),
		MaxAttempts:             3,
		RetryInitialDelay:       300 * time.Millisecond,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
		MaxConcurrency:          4,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the GPA backend API client. It is safe for concurrent use.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
	mapper      *Mapper

	// Token management
	token   *TokenDTO
	tokenMu sync.RWMutex
}

// NewClient creates a new GPA backend client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger.With("component", "gpaapi")
	c := &Client{
		config:      config,
		httpClient:  httpClient,
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		mapper:      NewMapper(),
	}

	c.breaker = circuitbreaker.BackendAPIBreaker(
		func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		circuitbreaker.WithFailureThreshold(config.BreakerFailureThreshold),
		circuitbreaker.WithTimeout(config.BreakerTimeout),
		circuitbreaker.WithIsFailure(isRetryable),
	)
	c.retrier = retry.BackendAPIRetrier(
		retry.WithMaxAttempts(config.MaxAttempts),
		retry.WithInitialDelay(config.RetryInitialDelay),
		retry.WithRetryIf(isRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				c.rateLimiter.RecordRateLimitHit(rl.RetryAfter)
			}
			logger.Debug("retrying backend request", "attempt", attempt, "delay", delay, "error", err)
		}),
	)

	if config.Token != "" {
		c.SetToken(config.Token)
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with circuit breaking, retries and rate
// limiting, and translates the outcome into domain errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			return c.doSingleRequest(ctx, method, path, body, result)
		})
	})
	if err != nil {
		return c.translateError(method, path, err)
	}
	return nil
}

// doSingleRequest performs a single HTTP request. A url.Values body is sent
// form-encoded, anything else as JSON.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var (
		bodyReader  io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case url.Values:
		bodyReader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		jsonBody, err := json.Marshal(b)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	c.tokenMu.RLock()
	if c.token != nil && c.token.AccessToken != "" {
		req.Header.Set("Authorization", c.token.AuthorizationHeader())
	}
	c.tokenMu.RUnlock()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if c.config.Debug {
		c.logger.Debug("gpa api request",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    "rate limit exceeded",
		}
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{StatusCode: resp.StatusCode}
		if len(respBody) > 0 {
			_ = json.Unmarshal(respBody, apiErr)
		}
		if apiErr.Detail == nil {
			apiErr.Detail = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.ClearToken()
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("%w: %v", shared.ErrBackendInvalidResponse, err))
		}
	}

	return nil
}

// translateError maps transport and API failures onto domain errors so that
// callers can use shared.IsNotFound, shared.IsRetryable and friends.
func (c *Client) translateError(method, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	op := method + " " + path
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return like(shared.ErrBackendUnavailable, fmt.Errorf("%s: %w", op, err))
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return like(shared.ErrBackendRateLimited, fmt.Errorf("%s: %w", op, err))
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return like(shared.ErrBackendUnauthorized, fmt.Errorf("%s: %w", op, err))
		case apiErr.StatusCode == http.StatusForbidden:
			return shared.WrapError("gpaapi", "Request", shared.ErrForbidden, op, err)
		case apiErr.StatusCode == http.StatusNotFound:
			return shared.WrapError("gpaapi", "Request", shared.ErrNotFound, op, err)
		case apiErr.StatusCode == http.StatusConflict:
			return shared.WrapError("gpaapi", "Request", shared.ErrAlreadyExists, op, err)
		case apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity:
			return shared.WrapError("gpaapi", "Request", shared.ErrValidation, op, err)
		case apiErr.IsServerError():
			return like(shared.ErrBackendUnavailable, fmt.Errorf("%s: %w", op, err))
		}
		return shared.WrapError("gpaapi", "Request", shared.ErrExternalService, op, err)
	}

	if errors.Is(err, shared.ErrBackendInvalidResponse) {
		return like(shared.ErrBackendInvalidResponse, fmt.Errorf("%s: %w", op, err))
	}

	return like(shared.ErrBackendUnavailable, fmt.Errorf("%s: %w", op, err))
}

// like wraps err in a copy of a sentinel so errors.Is matches the sentinel.
func like(sentinel *shared.DomainError, err error) error {
	return shared.WrapError(sentinel.Domain, sentinel.Op, sentinel.Kind, sentinel.Message, err)
}

// isRetryable checks if an error is worth another attempt.
func isRetryable(err error) bool {
	if err == nil || retry.IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// parseRetryAfter accepts both delta-seconds and HTTP-date values.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Ping checks that the backend answers. The grade table is public and cheap,
// so it doubles as a health check.
func (c *Client) Ping(ctx context.Context) error {
	return c.doSingleRequest(ctx, http.MethodGet, "/api/gpa/grade-table", nil, nil)
}

// ClientStatus is a snapshot of the client's resilience state.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker string
	Counts         circuitbreaker.Counts
	Authenticated  bool
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.breaker.State().String(),
		Counts:         c.breaker.Counts(),
		Authenticated:  c.IsAuthenticated(),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.breaker.Reset()
}
