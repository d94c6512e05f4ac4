// Package cloudflare provides a typed client for the Cloudflare Pages
// deployments API, scoped to a single account and project.
package cloudflare

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/artpar/sweeper/internal/core/retention"
	"github.com/artpar/sweeper/internal/shell/retryhttp"
)

// DefaultBaseURL is the public Cloudflare API v4 endpoint.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// bodyLogLimit caps response bodies quoted in logs and error messages.
const bodyLogLimit = 500

// Config holds Cloudflare Pages client configuration.
type Config struct {
	BaseURL   string // API root; DefaultBaseURL when empty
	AccountID string
	Project   string
	APIToken  string
}

// Client calls the Pages deployments API for one project. Listing failures
// are fatal; deletion failures are reported as false and never abort the
// caller.
type Client struct {
	cfg        Config
	httpClient *retryhttp.Client
	logger     *slog.Logger
}

// NewClient creates a Pages client. A nil httpClient gets a retry client
// with default settings.
func NewClient(cfg Config, httpClient *retryhttp.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = retryhttp.NewClient(retryhttp.Config{}, logger)
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// =============================================================================
// Envelope Types
// =============================================================================

// listEnvelope is the standard Cloudflare response wrapper for listings.
type listEnvelope struct {
	Success  bool                   `json:"success"`
	Result   []retention.Deployment `json:"result"`
	Errors   []apiMessage           `json:"errors"`
	Messages []apiMessage           `json:"messages"`
}

// deleteEnvelope only needs the success flag; the result payload varies.
type deleteEnvelope struct {
	Success bool `json:"success"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// Deployment Operations
// =============================================================================

// ListDeployments fetches the project's deployments, optionally filtered by
// environment, sorted newest first. The endpoint is called without
// pagination parameters: the Pages API rejects page/per_page with error
// 8000024 and returns the full set in one response.
func (c *Client) ListDeployments(ctx context.Context, env retention.Environment) ([]retention.Deployment, error) {
	var query url.Values
	if env == retention.EnvironmentProduction || env == retention.EnvironmentPreview {
		query = url.Values{"env": []string{string(env)}}
	}

	resp, err := c.httpClient.Do(ctx, http.MethodGet, c.projectURL()+"/deployments", query, c.headers())
	if err != nil {
		return nil, &FetchError{Environment: env.Label(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Environment: env.Label(), StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Environment: env.Label(),
			StatusCode:  resp.StatusCode,
			Message:     truncate(string(body), bodyLogLimit),
		}
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &FetchError{Environment: env.Label(), StatusCode: resp.StatusCode, Err: err}
	}
	if !envelope.Success {
		return nil, &FetchError{
			Environment: env.Label(),
			StatusCode:  resp.StatusCode,
			Message:     "success=false: " + truncate(string(body), bodyLogLimit),
		}
	}

	deployments := envelope.Result
	retention.SortNewestFirst(deployments)

	c.logger.Info("deployments retrieved",
		"environment", env.Label(),
		"count", len(deployments),
	)
	return deployments, nil
}

// DeleteDeployment deletes one deployment by id. True means the API
// answered 200 with success=true; any other outcome is logged with the
// status and a truncated body, and reported as false. The error result is
// non-nil only when ctx ended mid-request.
func (c *Client) DeleteDeployment(ctx context.Context, id string) (bool, error) {
	resp, err := c.httpClient.Do(ctx, http.MethodDelete, c.projectURL()+"/deployments/"+id, nil, c.headers())
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("deployment delete failed",
			"deployment_id", id,
			"error", err,
		)
		return false, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var envelope deleteEnvelope
	decodeErr := json.Unmarshal(body, &envelope)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && envelope.Success {
		c.logger.Info("deployment deleted", "deployment_id", id)
		return true, nil
	}

	c.logger.Warn("deployment delete failed",
		"deployment_id", id,
		"status", resp.StatusCode,
		"body", truncate(string(body), bodyLogLimit),
	)
	return false, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Client) projectURL() string {
	return c.cfg.BaseURL + "/accounts/" + c.cfg.AccountID + "/pages/projects/" + c.cfg.Project
}

func (c *Client) headers() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	return header
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
