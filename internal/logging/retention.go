package logging

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Retention prunes old *.log files from the log directory and its debug/
// subdirectory, where diagnostic sessions write.
type Retention struct {
	Dir  string
	Days int
	// Active lists files still being written; they are never removed.
	Active []string

	now func() time.Time
}

// Expired returns the log files older than the retention window. Deeper
// directories and files that are not *.log are ignored.
func (r Retention) Expired() []string {
	dir := strings.TrimSpace(r.Dir)
	if r.Days <= 0 || dir == "" {
		return nil
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	cutoff := now().AddDate(0, 0, -r.Days)
	active := make(map[string]bool, len(r.Active))
	for _, path := range r.Active {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			active[abs] = true
		}
	}

	var expired []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == dir || (filepath.Dir(path) == filepath.Clean(dir) && d.Name() == "debug") {
				return nil
			}
			return fs.SkipDir
		}
		if filepath.Ext(d.Name()) != ".log" {
			return nil
		}
		if abs, absErr := filepath.Abs(path); absErr == nil && active[abs] {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		expired = append(expired, path)
		return nil
	})
	return expired
}

// Prune removes the expired files and returns how many were deleted.
func (r Retention) Prune(logger *slog.Logger) int {
	removed := 0
	for _, path := range r.Expired() {
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions on the log directory"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("old logs pruned",
			Int("removed", removed),
			Int("retention_days", r.Days),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
