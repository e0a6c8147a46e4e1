package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"demoforge/internal/analytics"
	"demoforge/internal/config"
	"demoforge/internal/daemon"
	"demoforge/internal/pipeline"
	"demoforge/internal/project"
	"demoforge/internal/stage"
	"demoforge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *project.Store
	stubs      *testsupport.StubAdapters
	configPath string
	// offlineAPI points at a closed port so commands fall back to the database.
	offlineAPI string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": `{"ok":true}`},
			}},
		})
	}))
	t.Cleanup(llm.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.LLM.BaseURL = llm.URL
	cfg.LLM.Model = "test-model"

	configPath := filepath.Join(homeDir, ".config", "demoforge", "config.toml")
	writeTestConfig(t, configPath, cfg)

	closed := httptest.NewServer(http.NotFoundHandler())
	offline := closed.Listener.Addr().String()
	closed.Close()

	stubs := testsupport.NewStubAdapters(cfg.Paths.OutputDir)
	previous := stageAdapters
	stageAdapters = func(*config.Config) (*stage.Adapters, error) {
		adapters := stubs.Adapters()
		return &adapters, nil
	}
	t.Cleanup(func() { stageAdapters = previous })

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		stubs:      stubs,
		configPath: configPath,
		offlineAPI: offline,
	}
}

// startDaemon runs an in-process daemon over the env's database and returns
// its API address.
func (e *cliTestEnv) startDaemon(t *testing.T) string {
	t.Helper()
	orch := pipeline.New(e.cfg, e.store, e.stubs.Adapters(), nil)
	d, err := daemon.New(e.cfg, e.store, orch, analytics.NewTracker(e.store, nil), nil, daemon.WithVersion("test"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d.Addr()
}

func runCLI(t *testing.T, env *cliTestEnv, apiAddr string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(context.Background())
	flags := []string{"--config", env.configPath, "--api", apiAddr}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func createProject(t *testing.T, env *cliTestEnv, apiAddr string) string {
	t.Helper()
	out, _, err := runCLI(t, env, apiAddr, "project", "create", "--repo", "https://github.com/acme/demo", "--length", "90", "--json")
	if err != nil {
		t.Fatalf("project create: %v", err)
	}
	var detail struct {
		ID    string `json:"id"`
		Stage string `json:"stage"`
	}
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode create output %q: %v", out, err)
	}
	if detail.ID == "" || detail.Stage != "pending" {
		t.Fatalf("unexpected create output %q", out)
	}
	return detail.ID
}
