// Package demo holds the artifacts passed between pipeline stages: the
// analysis, the script and its segments, captures, narration, and the final
// video. Types here are plain data with JSON tags; they are cached and
// persisted as-is.
package demo
