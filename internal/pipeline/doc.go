// Package pipeline drives a project through analyze, script, capture, voice
// and assemble.
//
// The Orchestrator owns the project state machine. Each stage computes a
// fingerprint from a typed inputs struct, restores its output from the cache
// when the fingerprint is known, and otherwise runs the stage adapter under a
// hard timeout. Artifacts, fingerprints and the last progress snapshot are
// persisted on the project before the next stage begins.
//
// A project runs at most once at a time: an in-process registry rejects a
// second run, and a per-project file lock keeps a CLI run and the daemon from
// driving the same project. A weighted semaphore caps concurrent pipelines.
package pipeline
