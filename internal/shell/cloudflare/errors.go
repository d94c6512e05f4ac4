package cloudflare

import "fmt"

// =============================================================================
// Error Types
// =============================================================================

// FetchError reports a deployment listing that could not be completed:
// transport failure after retries, a non-200 final status, or an API
// envelope with success=false. Fetch failures are always fatal to the
// caller; there is no safe way to continue without a trustworthy listing.
type FetchError struct {
	Environment string // environment filter of the failed listing, "all" when unfiltered
	StatusCode  int    // final HTTP status, 0 when transport failed
	Message     string // truncated response body or envelope detail
	Err         error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("list deployments env=%s", e.Environment)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
