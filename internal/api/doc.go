// Package api is the control surface shared by the daemon's HTTP handlers and
// the CLI. It wraps the project store, the pipeline orchestrator, the progress
// broadcaster, the stage cache and the analytics tracker behind one Service,
// and translates internal models into transport-friendly DTOs.
//
// # Key Types
//
// Service: create/get/list/delete projects, execute and cancel pipeline runs,
// subscribe to progress, record and summarize view analytics, and report or
// prune the stage cache.
//
// Project/ProjectDetail: transport representation of a project. Detail adds the
// analysis, script and video artifacts.
//
// DaemonStatus: daemon runtime information, project counts, cache statistics
// and dependency availability.
//
// # Errors
//
// Service methods return errors tagged with the services markers. StatusCode
// maps them to HTTP status codes: validation errors are 400, unknown projects
// are 404 and concurrent runs are 409.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Stages are exposed as
// lowercase strings and timestamps use RFC3339 with milliseconds. Progress
// snapshots are passed through unchanged so the SSE, WebSocket and CLI views
// all see the same payload.
package api
