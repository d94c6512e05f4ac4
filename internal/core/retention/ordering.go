package retention

import "sort"

// =============================================================================
// Deployment Ordering
// =============================================================================

// SortNewestFirst orders deployments by CreatedOn descending, in place.
// Entries without a timestamp sort last. The sort is stable, so deployments
// with equal timestamps keep the order the API returned them in.
func SortNewestFirst(deployments []Deployment) {
	sort.SliceStable(deployments, func(i, j int) bool {
		return deployments[i].CreatedOn > deployments[j].CreatedOn
	})
}
