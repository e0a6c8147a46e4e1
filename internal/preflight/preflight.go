package preflight

import (
	"context"

	"demoforge/internal/config"
)

// Minimum free space on the output volume and minimum available memory.
// Rendering one video needs roughly a gigabyte of scratch clips.
const (
	MinFreeDiskBytes  int64 = 2 << 30
	MinAvailableBytes int64 = 1 << 30
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}
	if cfg.Scripter.Source == "file" {
		results = append(results, CheckDirectoryAccess("Script directory", cfg.Paths.ScriptDir))
	}
	results = append(results,
		CheckFreeSpace("Output disk space", cfg.Paths.OutputDir, MinFreeDiskBytes),
		CheckMemory(ctx, MinAvailableBytes),
	)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
