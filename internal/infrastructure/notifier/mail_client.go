// Package notifier implements delivery of reminder and nudge emails
// through an HTTP mail API. The client carries its own retry and circuit
// breaker policy: callers invoke Send once and a returned error means the
// message could not be delivered after all internal attempts.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leadpath/leadpath-engine/pkg/circuitbreaker"
	"github.com/leadpath/leadpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the mail API client.
type ClientConfig struct {
	// BaseURL is the mail API base URL
	BaseURL string

	// APIKey is the bearer token for authentication
	APIKey string

	// FromAddress is the sender address placed on every message
	FromAddress string

	// FromName is the human-readable sender name
	FromName string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RetryOptions configure the retry policy for transient failures
	RetryOptions []retry.Option

	// BreakerOptions configure the circuit breaker
	BreakerOptions []circuitbreaker.Option

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging of every request
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
		RetryOptions: []retry.Option{
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(500 * time.Millisecond),
			retry.WithMaxDelay(10 * time.Second),
			retry.WithMultiplier(2.0),
			retry.WithJitter(0.2),
		},
		BreakerOptions: []circuitbreaker.Option{
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithTimeout(60 * time.Second),
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitError indicates the mail API asked us to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.RetryAfter)
}

// APIError is an error response returned by the mail API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mail api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// MailClient delivers messages through an HTTP mail API.
// It implements notification.Notifier.
type MailClient struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewMailClient creates a new mail API client.
func NewMailClient(config ClientConfig) *MailClient {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	retryOpts := append([]retry.Option{
		retry.WithRetryIf(isRetryable),
	}, config.RetryOptions...)

	return &MailClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  config.Logger,
		retrier: retry.New(retryOpts...),
		breaker: circuitbreaker.New("mail-api", config.BreakerOptions...),
	}
}

// sendRequest is the JSON payload for POST /v1/messages.
type sendRequest struct {
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name,omitempty"`
	ToAddress   string `json:"to_address"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// sendResponse is the acknowledgement returned by the mail API.
type sendResponse struct {
	MessageID string `json:"message_id"`
	Accepted  bool   `json:"accepted"`
}

// Send delivers one message. The error combines retry and circuit breaker
// policy: a nil return means the API accepted the message.
func (c *MailClient) Send(ctx context.Context, recipient, subject, body string) error {
	payload := sendRequest{
		FromAddress: c.config.FromAddress,
		FromName:    c.config.FromName,
		ToAddress:   recipient,
		Subject:     subject,
		Body:        body,
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doSingleRequest(ctx, payload)
		})
	})
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}

	return nil
}

// doSingleRequest performs a single HTTP request against the mail API.
func (c *MailClient) doSingleRequest(ctx context.Context, payload sendRequest) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal body: %w", err))
	}

	fullURL := c.config.BaseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(jsonBody))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("mail api request", "to", payload.ToAddress, "subject", payload.Subject)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	var ack sendResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &ack); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if !ack.Accepted {
			return fmt.Errorf("mail api rejected message %s", ack.MessageID)
		}
	}

	return nil
}

// isRetryable classifies errors for the retry policy.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if retry.IsPermanent(err) {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Server-side failures are worth retrying, client errors are not.
		return apiErr.StatusCode >= 500
	}

	errStr := err.Error()
	for _, sub := range []string{"timeout", "connection refused", "temporary", "reset", "EOF"} {
		if strings.Contains(errStr, sub) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the mail API is reachable.
func (c *MailClient) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ClientStatus describes the current state of the client.
type ClientStatus struct {
	BreakerState  string
	BreakerCounts circuitbreaker.Counts
	IsHealthy     bool
}

// Status returns the current status of the client.
func (c *MailClient) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		BreakerState:  c.breaker.State().String(),
		BreakerCounts: c.breaker.Counts(),
		IsHealthy:     c.IsHealthy(ctx),
	}
}

// Reset clears the circuit breaker state.
func (c *MailClient) Reset() {
	c.breaker.Reset()
}
