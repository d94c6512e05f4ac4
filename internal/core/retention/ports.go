package retention

import "context"

// =============================================================================
// Ports
// =============================================================================

// Lister fetches the deployments of a project, newest first.
type Lister interface {
	ListDeployments(ctx context.Context, env Environment) ([]Deployment, error)
}

// Deleter removes a single deployment by id. Implementations report
// API-level failures as false rather than as errors; the error result is
// reserved for context cancellation.
type Deleter interface {
	DeleteDeployment(ctx context.Context, id string) (bool, error)
}
