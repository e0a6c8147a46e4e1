package drapto

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	draptolib "github.com/five82/drapto"
)

func TestArchiveRequiresPaths(t *testing.T) {
	lib := NewLibrary()
	if _, err := lib.Archive(context.Background(), "", "/tmp", nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := lib.Archive(context.Background(), "/videos/demo.mp4", " ", nil); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("/out/abc/acme-deploy.mp4", "/out/abc/archive")
	if got != filepath.Join("/out/abc/archive", "acme-deploy.mkv") {
		t.Fatalf("unexpected output path %q", got)
	}
}

func TestReporterForwardsProgress(t *testing.T) {
	var messages []string
	var last float64
	r := &reporter{progress: func(p float64, msg string) {
		last = p
		messages = append(messages, msg)
	}}
	r.EncodingStarted(900)
	r.EncodingProgress(draptolib.ProgressSnapshot{Percent: 42})
	if last != 42 {
		t.Fatalf("expected 42%%, got %v", last)
	}
	r.Warning("slow preset")
	r.EncodingComplete(draptolib.EncodingOutcome{})
	if last != 100 || !strings.Contains(strings.Join(messages, "|"), "archive warning: slow preset") {
		t.Fatalf("unexpected progress trail %v (last %v)", messages, last)
	}
}
