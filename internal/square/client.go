package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	maxAttempts = 4

	baseBackoff = 2 * time.Second
	maxBackoff  = 15 * time.Second
)

// Logger receives structured transport events. It mirrors the shape of the
// service-layer loggers so a zap sugar call can be dropped in directly.
type Logger func(ctx context.Context, event string, fields map[string]any)

// Config carries the credentials and wire settings for the transport client.
type Config struct {
	AccessToken string
	BaseURL     string
	// Version pins the Square-Version header so remote behaviour does not
	// change underneath us.
	Version    string
	LocationID string

	HTTPClient *http.Client
	Logger     Logger

	// Clock, Sleep and Jitter exist for tests; all default to real implementations.
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(d time.Duration) time.Duration
}

// Client is the low-level Square transport. It attaches auth and the pinned
// protocol version, classifies failures, and retries 429/5xx with backoff.
// It knows nothing about invoices or orders.
type Client struct {
	token      string
	baseURL    string
	version    string
	locationID string

	httpClient *http.Client
	logger     Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func(d time.Duration) time.Duration
}

// NewClient constructs a transport client from explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square: access token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("square: base url is required")
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		return nil, errors.New("square: api version is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := cfg.Jitter
	if jitter == nil {
		jitter = fullJitter
	}

	return &Client{
		token:      token,
		baseURL:    baseURL,
		version:    version,
		locationID: strings.TrimSpace(cfg.LocationID),
		httpClient: httpClient,
		logger:     logger,
		now: func() time.Time {
			return clock().UTC()
		},
		sleep:  sleep,
		jitter: jitter,
	}, nil
}

// LocationID returns the configured remote location identifier.
func (c *Client) LocationID() string {
	return c.locationID
}

// call issues one logical request, retrying transient failures. The body is
// marshalled once and replayed byte-identical on every attempt, so idempotency
// keys embedded in it stay stable across retries.
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	if c == nil {
		return errors.New("square: client is nil")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &TransportError{Path: path, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	for attempt := 1; ; attempt++ {
		raw, retryAfter, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			if out == nil || len(raw) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return &TransportError{Path: path, Err: fmt.Errorf("decode response: %w", err)}
			}
			return nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return err
		}
		if attempt >= maxAttempts {
			return &RetryExhaustedError{
				Status:    retryable.status,
				Attempts:  attempt,
				Path:      path,
				Detail:    retryable.detail,
				RequestID: retryable.requestID,
			}
		}

		delay := backoffDelay(attempt, retryAfter, c.jitter)
		c.logger(ctx, "square.retry", map[string]any{
			"path":       path,
			"status":     retryable.status,
			"attempt":    attempt,
			"delay_ms":   delay.Milliseconds(),
			"request_id": retryable.requestID,
			"detail":     retryable.detail,
		})
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// retryableError is internal to the retry loop; it never escapes call.
type retryableError struct {
	status    int
	detail    string
	requestID string
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("square retryable status %d: %s", e.status, e.detail)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (json.RawMessage, time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, &TransportError{Path: path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	requestID := correlationID(resp.Header)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &TransportError{Path: path, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(raw) > 0 && !json.Valid(raw) {
			return nil, 0, &TransportError{Path: path, Err: errors.New("response body is not valid JSON")}
		}
		return raw, 0, nil
	}

	var errBody struct {
		Errors  []APIError `json:"errors"`
		Message string     `json:"message"`
	}
	_ = json.Unmarshal(raw, &errBody)
	detail := SummarizeAPIErrors(errBody.Errors)
	if detail == "" {
		detail = errBody.Message
	}
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	if detail == "" {
		detail = fmt.Sprintf("square error (%d)", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, &AuthError{Status: resp.StatusCode, Path: path, Detail: detail, RequestID: requestID}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, parseRetryAfter(resp.Header), &retryableError{status: resp.StatusCode, detail: detail, requestID: requestID}
	default:
		return nil, 0, &ValidationError{
			Status:    resp.StatusCode,
			Path:      path,
			Detail:    detail,
			RequestID: requestID,
			Errors:    errBody.Errors,
		}
	}
}

// backoffDelay prefers an explicit Retry-After, otherwise exponential backoff
// capped at 15s with full jitter applied.
func backoffDelay(attempt int, retryAfter time.Duration, jitter func(time.Duration) time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	delay := baseBackoff << (attempt - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return jitter(delay)
}

func parseRetryAfter(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// correlationID extracts the remote request correlation header, checking the
// names Square has used across API versions.
func correlationID(header http.Header) string {
	for _, name := range []string{"X-Request-Id", "X-Squaretrace-Id", "X-Correlation-Id"} {
		if v := strings.TrimSpace(header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
