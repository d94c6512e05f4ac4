package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// =============================================================================
// Resolver Errors
// =============================================================================

var (
	// ErrNoProductionDeployments is returned when the production listing is
	// empty. With nothing to keep there is no safe retention decision, so
	// the run aborts instead of guessing.
	ErrNoProductionDeployments = errors.New("no production deployments found")

	// ErrMissingDeploymentID is returned when the newest production
	// deployment carries no id.
	ErrMissingDeploymentID = errors.New("newest production deployment has no id")
)

// =============================================================================
// Resolver
// =============================================================================

// Resolver picks the single deployment a cleanup run must preserve.
type Resolver struct {
	lister Lister
	logger *slog.Logger
}

// NewResolver creates a resolver over the given lister.
func NewResolver(lister Lister, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		lister: lister,
		logger: logger,
	}
}

// ResolveKeepID returns the id of the newest production deployment. The
// result is fixed for the whole run; callers never re-resolve mid-cleanup.
func (r *Resolver) ResolveKeepID(ctx context.Context) (string, error) {
	production, err := r.lister.ListDeployments(ctx, EnvironmentProduction)
	if err != nil {
		return "", fmt.Errorf("list production deployments: %w", err)
	}
	if len(production) == 0 {
		return "", ErrNoProductionDeployments
	}

	keepID := production[0].ID
	if keepID == "" {
		return "", ErrMissingDeploymentID
	}

	r.logger.Info("keeping newest production deployment", "keep_id", keepID)
	return keepID, nil
}
