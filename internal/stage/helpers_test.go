package stage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"demoforge/internal/services"
)

type recorder struct {
	mu    sync.Mutex
	calls []float64
	last  [2]int
}

func (r *recorder) Report(fraction float64, _ string, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fraction)
	r.last = [2]int{current, total}
}

func TestCounterReportsFractions(t *testing.T) {
	rec := &recorder{}
	c := NewCounter(rec, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Done("segment ready")
		}()
	}
	wg.Wait()
	if len(rec.calls) != 4 {
		t.Fatalf("expected 4 reports, got %d", len(rec.calls))
	}
	max := 0.0
	for _, f := range rec.calls {
		if f > max {
			max = f
		}
	}
	if max != 1 {
		t.Fatalf("expected final fraction 1, got %v", max)
	}
}

func TestNilReporterIsSafe(t *testing.T) {
	OrNop(nil).Report(0.5, "ignored", 1, 2)
	NewCounter(nil, 0).Done("ignored")
}

func TestWorkDirUsesProjectFromContext(t *testing.T) {
	root := t.TempDir()
	ctx := services.WithProjectID(context.Background(), "abc123abc123")
	dir, err := WorkDir(ctx, root, "captures")
	if err != nil {
		t.Fatalf("WorkDir: %v", err)
	}
	if dir != filepath.Join(root, "abc123abc123", "captures") {
		t.Fatalf("unexpected dir %q", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
	adhoc, err := WorkDir(context.Background(), root, "voice")
	if err != nil || adhoc != filepath.Join(root, "adhoc", "voice") {
		t.Fatalf("unexpected adhoc dir %q err=%v", adhoc, err)
	}
}
