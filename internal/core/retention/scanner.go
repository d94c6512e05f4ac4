package retention

import (
	"context"
	"fmt"
	"log/slog"
)

// =============================================================================
// Scanner
// =============================================================================

// Scanner builds the set of deployments eligible for deletion: every
// production deployment behind the newest one, plus every preview.
type Scanner struct {
	lister Lister
	logger *slog.Logger
}

// NewScanner creates a scanner over the given lister.
func NewScanner(lister Lister, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		lister: lister,
		logger: logger,
	}
}

// Scan fetches fresh production and preview listings and returns the current
// deletion candidates: older production deployments first, then all preview
// deployments, newest first within each group. Entries without an id and the
// kept deployment itself are excluded. Nothing is cached between calls.
func (s *Scanner) Scan(ctx context.Context, keepID string) ([]Deployment, error) {
	production, err := s.lister.ListDeployments(ctx, EnvironmentProduction)
	if err != nil {
		return nil, fmt.Errorf("list production deployments: %w", err)
	}
	previews, err := s.lister.ListDeployments(ctx, EnvironmentPreview)
	if err != nil {
		return nil, fmt.Errorf("list preview deployments: %w", err)
	}

	candidates := make([]Deployment, 0, len(production)+len(previews))
	if len(production) > 0 {
		for _, d := range production[1:] {
			if d.ID == "" || d.ID == keepID {
				continue
			}
			candidates = append(candidates, d)
		}
	}
	for _, d := range previews {
		if d.ID == "" || d.ID == keepID {
			continue
		}
		candidates = append(candidates, d)
	}

	s.logger.Info("deletion candidates scanned", "count", len(candidates))
	return candidates, nil
}
