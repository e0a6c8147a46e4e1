// Package daemon coordinates the long-running DemoForge process.
//
// It wires configuration, the project store, the pipeline orchestrator, the
// analytics tracker and the HTTP control surface into a single lifecycle with
// flock-based locking to prevent multiple instances. On start it fails runs
// left behind by a crashed process and schedules cache pruning; on stop it
// interrupts active runs and releases the lock.
//
// Keep orchestration logic here: pipeline behaviour lives in internal/pipeline
// and request semantics in internal/api, while the daemon focuses on startup,
// shutdown and HTTP transport.
package daemon
