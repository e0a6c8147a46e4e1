// Package progress fans pipeline progress snapshots out to live subscribers.
//
// Every project has its own topic. Publish never blocks the pipeline: each
// subscriber owns a bounded queue and, when that queue is full, the oldest
// queued snapshot is discarded so the newest one always gets through. A new
// subscriber first receives the latest snapshot, and a subscription channel is
// closed right after the terminal (complete or failed) snapshot is delivered.
package progress
