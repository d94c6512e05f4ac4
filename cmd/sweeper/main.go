// Sweeper retires stale deployments in a Cloudflare Pages project: it keeps
// the newest production deployment and deletes every preview deployment and
// every older production deployment, in polite batches, until nothing else
// remains.
//
// Usage:
//
//	# One-shot cleanup (CI entry point)
//	sweeper run
//
//	# Rehearse without deleting anything
//	sweeper run --dry-run
//
//	# Sweep every project listed in a manifest
//	sweeper run --manifest projects.yaml
//
//	# Daemon mode: cron schedule plus admin/metrics endpoint
//	sweeper serve
//
//	# Inspect past runs
//	sweeper history
//	sweeper history --run <id>
//
//	# Keep the API token in the OS keyring instead of the environment
//	sweeper auth set-token
//
// Exit codes: 0 full success, 1 configuration or fetch failure, 2 completed
// with one or more individual deletion failures.
package main

import "os"

func main() {
	os.Exit(Execute())
}
