// Package services defines shared utilities consumed by the pipeline stage
// adapters and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, run and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper. The orchestrator uses
//     Details to turn a stage failure into the message attached to the final
//     progress snapshot, and the HTTP layer maps markers to status codes.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
