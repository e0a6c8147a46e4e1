// Package project persists DemoForge projects in SQLite.
//
// A project couples a source (repository and/or website) with the generation
// settings and every artifact the pipeline produced for it. Stage transitions
// are validated here via CanTransition, and writes for one project are
// serialized through a keyed mutex while reads stay concurrent (WAL mode).
//
// Schema changes bump schemaVersion; older databases must be recreated.
package project
