// Package cache stores stage outputs keyed by an input fingerprint so a re-run
// of the pipeline can skip any stage whose inputs have not changed.
//
// Entries are JSON documents written atomically under <cache_dir>/<stage>/.
// Each stage owns its own directory, so identical fingerprints never collide
// across stage types, while two projects with identical inputs share entries.
// Expired and unreadable entries are treated as misses and removed on sight.
//
// Use `demoforge cache stats` to inspect usage and `demoforge cache prune` to
// drop expired entries; the daemon also prunes on a cron schedule.
package cache
