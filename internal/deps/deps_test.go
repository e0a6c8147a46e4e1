package deps

import (
	"os"
	"path/filepath"
	"testing"

	"demoforge/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestRequirementsFollowVoiceEngine(t *testing.T) {
	tests := []struct {
		engine   string
		wantName string
		edgeOpt  bool
	}{
		{"kokoro", "Kokoro TTS", true},
		{"pocket", "Pocket TTS", true},
		{"edge", "Edge TTS", false},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := config.Default()
			cfg.Voice.Engine = tt.engine
			reqs := Requirements(&cfg)
			var found, edge *Requirement
			for i := range reqs {
				if reqs[i].Name == tt.wantName {
					found = &reqs[i]
				}
				if reqs[i].Name == "Edge TTS" {
					edge = &reqs[i]
				}
			}
			if found == nil {
				t.Fatalf("expected %s in %#v", tt.wantName, reqs)
			}
			if edge == nil || edge.Optional != tt.edgeOpt {
				t.Fatalf("unexpected edge requirement %#v", edge)
			}
		})
	}
}
