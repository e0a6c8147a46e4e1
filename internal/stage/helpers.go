package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"demoforge/internal/services"
)

// Reporter receives adapter progress. fraction covers the whole stage (0..1);
// current and total count work units such as segments and may be zero.
type Reporter interface {
	Report(fraction float64, message string, current, total int)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(fraction float64, message string, current, total int)

// Report calls f.
func (f ReporterFunc) Report(fraction float64, message string, current, total int) {
	if f != nil {
		f(fraction, message, current, total)
	}
}

// NopReporter discards progress.
var NopReporter Reporter = ReporterFunc(nil)

// OrNop returns r, or NopReporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter
	}
	return r
}

// Counter reports unit-based progress from concurrent workers.
type Counter struct {
	mu       sync.Mutex
	reporter Reporter
	done     int
	total    int
}

// NewCounter returns a counter over total units.
func NewCounter(r Reporter, total int) *Counter {
	return &Counter{reporter: OrNop(r), total: total}
}

// Done marks one unit finished and reports the new fraction.
func (c *Counter) Done(message string) {
	c.mu.Lock()
	c.done++
	done, total := c.done, c.total
	c.mu.Unlock()
	fraction := 1.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	c.reporter.Report(fraction, message, done, total)
}

// WorkDir returns <root>/<project-id>/<sub> for the project carried by ctx,
// creating it when missing. Calls without a project use "adhoc".
func WorkDir(ctx context.Context, root, sub string) (string, error) {
	id, ok := services.ProjectIDFromContext(ctx)
	if !ok {
		id = "adhoc"
	}
	dir := filepath.Join(root, id, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}
