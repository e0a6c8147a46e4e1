package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"demoforge/internal/api"
	"demoforge/internal/progress"
)

func TestVersionSkipsConfig(t *testing.T) {
	cmd := newRootCommand()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "broken.toml"), "version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out.String(), "demoforge dev")
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, env.offlineAPI, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, env, env.offlineAPI, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "********")
	if strings.Contains(out, "api_key = 'test'") || strings.Contains(out, `api_key = "test"`) {
		t.Fatalf("api key leaked:\n%s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, env.offlineAPI, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, env.offlineAPI, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestInlineRunWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createProject(t, env, env.offlineAPI)

	out, _, err := runCLI(t, env, env.offlineAPI, "project", "list")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, env, env.offlineAPI, "run", id)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, stage := range []string{"analyzing", "scripting", "capturing", "voicing", "assembling", "complete"} {
		requireContains(t, out, stage)
	}
	requireContains(t, out, "Video: ")

	out, _, err = runCLI(t, env, env.offlineAPI, "project", "show", id)
	if err != nil {
		t.Fatalf("project show: %v", err)
	}
	requireContains(t, out, "complete")
	requireContains(t, out, "scene-1")

	out, _, err = runCLI(t, env, env.offlineAPI, "logs", "--cli", "--project", id, "-n", "5")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || len(lines) > 5 || !strings.Contains(lines[0], id) {
		t.Fatalf("expected up to 5 log lines for %s, got:\n%s", id, out)
	}
	out, _, err = runCLI(t, env, env.offlineAPI, "logs", "--cli", "--project", "ffffffffffff")
	if err != nil || strings.TrimSpace(out) != "" {
		t.Fatalf("expected no lines for another project, got %q, %v", out, err)
	}

	out, _, err = runCLI(t, env, env.offlineAPI, "script", "export", id, "--stdout")
	if err != nil {
		t.Fatalf("script export: %v", err)
	}
	requireContains(t, out, "scene-2")

	out, _, err = runCLI(t, env, env.offlineAPI, "cache", "stats", "--json")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var stats api.CacheStatsResponse
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode cache stats: %v", err)
	}
	if stats.Stats.Entries == 0 {
		t.Fatalf("expected cache entries after a run, got %+v", stats.Stats)
	}

	out, _, err = runCLI(t, env, env.offlineAPI, "cache", "clear", "--stage", "voicing")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "cache entries (voicing)")

	out, _, err = runCLI(t, env, env.offlineAPI, "project", "delete", id)
	if err != nil {
		t.Fatalf("project delete: %v", err)
	}
	requireContains(t, out, "Deleted project "+id)
	if _, _, err := runCLI(t, env, env.offlineAPI, "project", "show", id); err == nil {
		t.Fatal("expected show of deleted project to fail")
	}
}

func TestInlineRunReportsFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubs.FailStage("voicing", errors.New("voicing engine unavailable"))
	id := createProject(t, env, env.offlineAPI)

	_, _, err := runCLI(t, env, env.offlineAPI, "run", id)
	if err == nil || !strings.Contains(err.Error(), "voicing") {
		t.Fatalf("expected voicing failure, got %v", err)
	}
}

func TestCommandsThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	addr := env.startDaemon(t)
	id := createProject(t, env, addr)

	out, _, err := runCLI(t, env, addr, "run", "--daemon", id)
	if err != nil {
		t.Fatalf("run --daemon: %v\n%s", err, out)
	}
	requireContains(t, out, "Run accepted")
	requireContains(t, out, "complete")

	out, _, err = runCLI(t, env, addr, "progress", id)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	requireContains(t, out, "complete")

	out, _, err = runCLI(t, env, addr, "cancel", id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "is not running")

	out, _, err = runCLI(t, env, addr, "project", "list", "--json", "--stage", "complete")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	var projects []api.Project
	if err := json.Unmarshal([]byte(out), &projects); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != id || projects[0].VideoURL == "" {
		t.Fatalf("unexpected projects %+v", projects)
	}

	out, _, err = runCLI(t, env, addr, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.ProjectCounts["complete"] != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	out, _, err = runCLI(t, env, addr, "analytics", id)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	requireContains(t, out, "Views:")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	createProject(t, env, env.offlineAPI)

	out, _, err := runCLI(t, env, env.offlineAPI, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Not running")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "pending")
	requireContains(t, out, "API reachable")

	if _, _, err := runCLI(t, env, env.offlineAPI, "progress", "0123456789ab"); err == nil || !strings.Contains(err.Error(), "demoforge start") {
		t.Fatalf("expected progress to require the daemon, got %v", err)
	}
}

func TestFormatSnapshot(t *testing.T) {
	tests := []struct {
		name string
		snap progress.Snapshot
		want string
	}{
		{"counts", progress.Snapshot{Stage: "capturing", Fraction: 0.5, Current: 2, Total: 4, Message: "scene-2"}, "[ 50%] capturing  2/4 scene-2"},
		{"cached", progress.Snapshot{Stage: "analyzing", Fraction: 1, CacheHit: true}, "[100%] analyzing  (cached)"},
		{"failed", progress.Snapshot{Stage: "failed", Error: "tts exploded"}, "[  0%] failed    : tts exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSnapshot(tt.snap); got != tt.want {
				t.Fatalf("formatSnapshot = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressPrinterSamplesPlainOutput(t *testing.T) {
	var out strings.Builder
	p := newProgressPrinter(&out)
	for _, f := range []float64{0, 0.1, 0.2, 0.3, 0.6, 0.61} {
		p.Print(progress.Snapshot{Stage: "capturing", Fraction: f})
	}
	p.Print(progress.Snapshot{Stage: "complete", Fraction: 1})
	p.Finish()
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 sampled lines, got %d:\n%s", len(lines), out.String())
	}
}
