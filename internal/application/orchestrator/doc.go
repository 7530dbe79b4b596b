// Package orchestrator implements the analysis lifecycle.
//
// The orchestrator manager coordinates analyses by:
//   - Validating job specs and creating analysis records
//   - Running the pipeline synchronously or handing analyses to the worker queue
//   - Managing the lifecycle (submit, run, cancel, timeout)
//   - Publishing events to the event bus
//   - Persisting analysis records via the analysis store
//
// StepPublisher bridges pipeline step events onto the event bus so clients
// can follow a run step by step.
package orchestrator
