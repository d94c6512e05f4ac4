package retention

// =============================================================================
// Environments
// =============================================================================

// Environment selects which deployments a listing returns.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentPreview    Environment = "preview"

	// EnvironmentAll lists every deployment regardless of environment.
	// It maps to the absence of an env filter on the wire.
	EnvironmentAll Environment = ""
)

// Label returns the environment name for logging, "all" for EnvironmentAll.
func (e Environment) Label() string {
	if e == EnvironmentAll {
		return "all"
	}
	return string(e)
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment is one Pages deployment as reported by the hosting API.
// CreatedOn stays a string: the API emits RFC 3339 timestamps, which order
// lexicographically, and passing them through untouched avoids inventing a
// zone or precision the API did not state.
type Deployment struct {
	ID          string `json:"id"`
	Environment string `json:"environment"`
	CreatedOn   string `json:"created_on"`
}
