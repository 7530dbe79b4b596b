// Package workers implements the worker pool for executing submitted
// analyses.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take analysis IDs from a bounded queue
//   - Hand each analysis to the Runner (the orchestrator manager)
//   - Report their status for the health monitor
//
// The health monitor tracks worker status, logs it and records metrics. The
// gRPC health service reports the pool through it.
package workers
