package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusError is returned when the upstream answers with a non-200 status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Client is an HTTP client with retry support
type Client struct {
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	userAgent  string
}

// Option customises a Client
type Option func(*Client)

// WithRetries sets the total number of attempts (minimum 1)
func WithRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.retries = n
	}
}

// WithRetryDelay sets the base delay of the exponential backoff
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a new HTTP client.
// No request timeout is set: requests end when their context is cancelled.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		retries:    3,
		retryDelay: 1 * time.Second,
		userAgent:  "popcorn-grinder-service/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch makes an HTTP GET request with retry support.
// Cancellation of ctx stops the request and is never retried.
func (c *Client) Fetch(ctx context.Context, targetURL string, header http.Header) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			log.Warn().
				Int("attempt", attempt).
				Err(err).
				Str("url", targetURL).
				Msg("Request failed")

			if !c.wait(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
			log.Warn().
				Int("attempt", attempt).
				Int("status", resp.StatusCode).
				Str("url", targetURL).
				Msg("Request rate limited")

			if !c.wait(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			continue
		}

		return body, nil
	}

	if c.retries == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries failed: %w", lastErr)
}

// wait sleeps before the next attempt; it returns false when ctx ends first
// or no attempt is left
func (c *Client) wait(ctx context.Context, attempt int) bool {
	if attempt >= c.retries {
		return ctx.Err() == nil
	}
	waitTime := c.retryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	timer := time.NewTimer(waitTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// IsCanceled reports whether err came from a cancelled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
