package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"demoforge/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "DEMOFORGE_LLM_API_KEY", "GITHUB_TOKEN", "DEMOFORGE_NTFY_TOPIC"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "demoforge", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "demoforge")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "demoforge.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7500" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Capture.ViewportWidth != 2560 || cfg.Capture.ViewportHeight != 1440 {
		t.Fatalf("unexpected viewport %dx%d", cfg.Capture.ViewportWidth, cfg.Capture.ViewportHeight)
	}
	if cfg.Capture.TimeoutMillis != 30000 {
		t.Fatalf("unexpected capture timeout %d", cfg.Capture.TimeoutMillis)
	}
	if w, h := cfg.Dimensions(); w != 1920 || h != 1080 {
		t.Fatalf("unexpected dimensions %dx%d", w, h)
	}
	if cfg.CacheTTL() != 72*time.Hour {
		t.Fatalf("unexpected cache ttl %s", cfg.CacheTTL())
	}
	if !cfg.Video.KenBurns {
		t.Fatal("expected ken burns enabled by default")
	}
	if cfg.Scripter.MaxVideoLength != 300 {
		t.Fatalf("unexpected max video length %d", cfg.Scripter.MaxVideoLength)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "demoforge.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Video struct {
			Resolution string `toml:"resolution"`
			Transition string `toml:"transition"`
		} `toml:"video"`
		Pipeline struct {
			MaxConcurrentRuns int `toml:"max_concurrent_runs"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "videos")
	custom.Video.Resolution = "720p"
	custom.Video.Transition = "WipeLeft"
	custom.Pipeline.MaxConcurrentRuns = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.ProjectOutputDir("abc123") != filepath.Join(tempDir, "videos", "abc123") {
		t.Fatalf("unexpected project output dir %q", cfg.ProjectOutputDir("abc123"))
	}
	if w, h := cfg.Dimensions(); w != 1280 || h != 720 {
		t.Fatalf("expected 720p dimensions, got %dx%d", w, h)
	}
	if cfg.Video.Transition != "wipeleft" {
		t.Fatalf("expected normalized transition, got %q", cfg.Video.Transition)
	}
	if cfg.Pipeline.MaxConcurrentRuns != 4 {
		t.Fatalf("expected 4 concurrent runs, got %d", cfg.Pipeline.MaxConcurrentRuns)
	}
}

func TestEnvVarOverridesConfigFileForCredentials(t *testing.T) {
	clearCredentialEnv(t)
	configPath := filepath.Join(t.TempDir(), "demoforge.toml")
	contents := `
[llm]
api_key = "file-llm"

[analyzer]
github_token = "file-gh"

[notifications]
ntfy_topic = "https://ntfy.example/file"
`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "env-llm")
	t.Setenv("GITHUB_TOKEN", "env-gh")
	t.Setenv("DEMOFORGE_NTFY_TOPIC", "https://ntfy.example/env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-llm" {
		t.Errorf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Analyzer.GitHubToken != "env-gh" {
		t.Errorf("expected GitHub token from env, got %q", cfg.Analyzer.GitHubToken)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/env" {
		t.Errorf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestOpenAIProviderDropsOpenRouterDefaults(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	configPath := filepath.Join(t.TempDir(), "demoforge.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\nprovider = \"OpenAI\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	llm := cfg.GetLLM()
	if llm.Provider != "openai" {
		t.Fatalf("expected openai provider, got %q", llm.Provider)
	}
	if llm.BaseURL != "" {
		t.Fatalf("expected empty base url for openai, got %q", llm.BaseURL)
	}
	if llm.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", llm.Model)
	}
	if llm.APIKey != "sk-test" {
		t.Fatalf("expected key from OPENAI_API_KEY, got %q", llm.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[pipeline]") {
		t.Fatalf("sample config missing pipeline section: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "demoforge") {
		t.Fatalf("expected data dir to contain demoforge, got %q", cfg.Paths.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown provider", func(c *config.Config) { c.LLM.Provider = "anthropic" }},
		{"zero wpm", func(c *config.Config) { c.Scripter.WordsPerMinute = 0 }},
		{"tolerance too wide", func(c *config.Config) { c.Scripter.DurationTolerance = 1.5 }},
		{"bad brand color", func(c *config.Config) { c.Capture.BrandColor = "navy" }},
		{"unknown engine", func(c *config.Config) { c.Voice.Engine = "festival" }},
		{"odd resolution", func(c *config.Config) { c.Video.Resolution = "1921x1080" }},
		{"garbage resolution", func(c *config.Config) { c.Video.Resolution = "big" }},
		{"bad transition", func(c *config.Config) { c.Video.Transition = "spin" }},
		{"crf out of range", func(c *config.Config) { c.Video.CRF = 60 }},
		{"no concurrency", func(c *config.Config) { c.Pipeline.MaxConcurrentRuns = 0 }},
		{"zero stage timeout", func(c *config.Config) { c.Pipeline.VoiceTimeout = 0 }},
		{"bad cron", func(c *config.Config) { c.Cache.PruneSchedule = "every day" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDotenvFillsCredentialsWithoutTouchingEnvironment(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	dotenv := "OPENROUTER_API_KEY=dotenv-llm\nDEMOFORGE_NTFY_TOPIC=https://ntfy.example/dotenv\nDEMOFORGE_DOTENV_ONLY=1\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("DEMOFORGE_NTFY_TOPIC", "https://ntfy.example/env")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "dotenv-llm" {
		t.Errorf("expected LLM key from .env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/env" {
		t.Errorf("process environment should win over .env, got %q", cfg.Notifications.NtfyTopic)
	}
	if got := os.Getenv("OPENROUTER_API_KEY"); got != "" {
		t.Errorf("Load modified OPENROUTER_API_KEY to %q", got)
	}
	if _, ok := os.LookupEnv("DEMOFORGE_DOTENV_ONLY"); ok {
		t.Error("Load exported a .env variable into the process environment")
	}
}
