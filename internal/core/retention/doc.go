// Package retention decides which deployments of a Pages project survive a
// cleanup run.
//
// The policy is fixed: the newest production deployment is kept, everything
// else is a deletion candidate. The package exposes:
//
//   - Resolver: picks the deployment to keep (ResolveKeepID)
//   - Scanner: builds the current candidate set (Scan)
//   - SortNewestFirst: canonical deployment ordering
//
// Both Resolver and Scanner fetch through the Lister port and hold no state
// between calls; the candidate set is recomputed from live listings on every
// scan.
package retention
