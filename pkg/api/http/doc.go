// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Synchronous job and partition analysis
//   - Asynchronous analysis submission, status queries and cancellation
//   - Recommendations and metrics of the latest analysis of a job
//   - Pipeline introspection
//   - Health checks
//   - Prometheus metrics
package http
