// Package retryhttp provides an HTTP client with bounded retries and
// exponential backoff for transient failures.
package retryhttp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Defaults applied by NewClient when the corresponding Config field is zero.
const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 750 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

// Config holds retry client configuration.
type Config struct {
	MaxAttempts int           // total attempts per request, including the first
	BackoffBase time.Duration // delay after attempt n is BackoffBase * 2^(n-1)
	Timeout     time.Duration // per-attempt HTTP timeout
}

// Client wraps http.Client with a bounded retry loop. Transient statuses
// (429, 500, 502, 503, 504) and transport errors are retried; everything
// else is returned to the caller on the first attempt.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a retry client, filling zero Config fields with defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// isTransient reports whether a status code is worth retrying.
func isTransient(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do performs the request, retrying transient failures with exponential
// backoff. If every attempt ends in a transient status, the last response is
// returned unread for the caller to inspect. If every attempt ends in a
// transport error, the last error is returned. Backoff waits respect ctx.
func (c *Client) Do(ctx context.Context, method, rawURL string, query url.Values, header http.Header) (*http.Response, error) {
	target := rawURL
	if len(query) > 0 {
		target = rawURL + "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		c.logger.Debug("sending request",
			"method", method,
			"url", rawURL,
			"attempt", attempt,
		)

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Warn("request failed, will retry",
				"method", method,
				"url", rawURL,
				"attempt", attempt,
				"error", err,
			)

		case !isTransient(resp.StatusCode):
			return resp, nil

		case attempt == c.cfg.MaxAttempts:
			// Out of attempts; hand the transient response back so the
			// caller can judge the final status itself.
			return resp, nil

		default:
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("transient status %d", resp.StatusCode)
			c.logger.Warn("transient status, will retry",
				"method", method,
				"url", rawURL,
				"status", resp.StatusCode,
				"attempt", attempt,
			)
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.BackoffBase
		c.logger.Debug("backing off",
			"delay", delay,
			"attempt", attempt,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}
