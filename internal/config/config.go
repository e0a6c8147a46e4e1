package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
	LogDir    string `toml:"log_dir"`
	ScriptDir string `toml:"script_dir"`
	APIBind   string `toml:"api_bind"`
}

// LLM contains the connection settings shared by the analyzer and scripter.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Analyzer contains settings for repository and website inspection.
type Analyzer struct {
	GitHubAPIURL       string `toml:"github_api_url"`
	GitHubToken        string `toml:"github_token"`
	ReadmeMaxBytes     int    `toml:"readme_max_bytes"`
	PageMaxBytes       int    `toml:"page_max_bytes"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	UserAgent          string `toml:"user_agent"`
}

// Scripter contains settings for demo script generation.
type Scripter struct {
	Source            string  `toml:"source"`
	WordsPerMinute    int     `toml:"words_per_minute"`
	DurationTolerance float64 `toml:"duration_tolerance"`
	MaxVideoLength    int     `toml:"max_video_length"`
	MinSceneSeconds   float64 `toml:"min_scene_seconds"`
}

// Capture contains headless browser and card rendering settings.
type Capture struct {
	BrowserBinary     string `toml:"browser_binary"`
	ViewportWidth     int    `toml:"viewport_width"`
	ViewportHeight    int    `toml:"viewport_height"`
	TimeoutMillis     int    `toml:"timeout_ms"`
	Concurrency       int    `toml:"concurrency"`
	RetryAttempts     int    `toml:"retry_attempts"`
	FallbackOnFailure bool   `toml:"fallback_on_failure"`
	BrandColor        string `toml:"brand_color"`
}

// Voice contains text-to-speech settings.
type Voice struct {
	Engine          string  `toml:"engine"`
	Voice           string  `toml:"voice"`
	Speed           float64 `toml:"speed"`
	Gender          string  `toml:"gender"`
	VoiceSamplePath string  `toml:"voice_sample_path"`
	KokoroBinary    string  `toml:"kokoro_binary"`
	EdgeBinary      string  `toml:"edge_binary"`
	PocketBinary    string  `toml:"pocket_binary"`
}

// Video contains assembly settings.
type Video struct {
	Resolution         string  `toml:"resolution"`
	FPS                int     `toml:"fps"`
	Transition         string  `toml:"transition"`
	TransitionDuration float64 `toml:"transition_duration"`
	KenBurns           bool    `toml:"ken_burns"`
	BurnSubtitles      bool    `toml:"burn_subtitles"`
	SubtitleFont       string  `toml:"subtitle_font"`
	SubtitleSize       int     `toml:"subtitle_size"`
	CRF                int     `toml:"crf"`
	ArchiveAV1         bool    `toml:"archive_av1"`
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
	FFprobeBinary      string  `toml:"ffprobe_binary"`
}

// Cache contains settings for the stage output cache.
type Cache struct {
	Enabled       bool   `toml:"enabled"`
	TTLHours      int    `toml:"ttl_hours"`
	PruneSchedule string `toml:"prune_schedule"`
}

// Pipeline contains orchestrator limits and per-stage timeouts (seconds).
type Pipeline struct {
	MaxConcurrentRuns int `toml:"max_concurrent_runs"`
	AnalyzeTimeout    int `toml:"analyze_timeout"`
	ScriptTimeout     int `toml:"script_timeout"`
	CaptureTimeout    int `toml:"capture_timeout"`
	VoiceTimeout      int `toml:"voice_timeout"`
	AssembleTimeout   int `toml:"assemble_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnComplete     bool   `toml:"on_complete"`
	OnFailure      bool   `toml:"on_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for DemoForge.
//
// Configuration sections by subsystem:
//   - Paths: data, output, cache and log directories plus the API bind address
//   - LLM: chat completion provider used for analysis and scripting
//   - Analyzer: GitHub API and website fetch limits
//   - Scripter: script source, pacing and duration tolerance
//   - Capture: headless browser and card rendering
//   - Voice: TTS engine selection
//   - Video: resolution, transitions, subtitles and encoders
//   - Cache: stage output cache TTL and pruning schedule
//   - Pipeline: concurrency limit and stage timeouts
//   - Notifications: ntfy push settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Analyzer      Analyzer      `toml:"analyzer"`
	Scripter      Scripter      `toml:"scripter"`
	Capture       Capture       `toml:"capture"`
	Voice         Voice         `toml:"voice"`
	Video         Video         `toml:"video"`
	Cache         Cache         `toml:"cache"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is
// read first so secrets can live outside the TOML file; its values fill in
// credentials the process environment does not set and never modify it.
func Load(path string) (*Config, string, bool, error) {
	// A missing or unreadable .env leaves only the process environment.
	dotenv, err := godotenv.Read()
	if err != nil {
		dotenv = map[string]string{}
	}
	env := newEnvLookup(dotenv)

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(env); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("demoforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and CLI write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing the project store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "demoforge.db")
}

// DaemonLockPath returns the single-instance lock held by the daemon.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.DataDir, "demoforged.lock")
}

// LockDir returns the directory holding daemon and per-project run locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// ProjectOutputDir returns the directory holding one project's artifacts.
func (c *Config) ProjectOutputDir(projectID string) string {
	return filepath.Join(c.Paths.OutputDir, projectID)
}

// CacheTTL returns the default cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// Dimensions parses the configured video resolution.
func (c *Config) Dimensions() (int, int) {
	w, h, err := parseResolution(c.Video.Resolution)
	if err != nil {
		return defaultVideoWidth, defaultVideoHeight
	}
	return w, h
}

// StageTimeouts returns the hard timeout for each pipeline stage keyed by stage name.
func (c *Config) StageTimeouts() map[string]time.Duration {
	seconds := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return map[string]time.Duration{
		"analyzing":  seconds(c.Pipeline.AnalyzeTimeout),
		"scripting":  seconds(c.Pipeline.ScriptTimeout),
		"capturing":  seconds(c.Pipeline.CaptureTimeout),
		"voicing":    seconds(c.Pipeline.VoiceTimeout),
		"assembling": seconds(c.Pipeline.AssembleTimeout),
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved LLM settings handed to the llm package.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       strings.TrimSpace(c.LLM.Provider),
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		RetryAttempts:  c.LLM.RetryAttempts,
	}
}
