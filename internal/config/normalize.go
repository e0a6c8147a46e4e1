package config

import (
	"fmt"
	"os"
	"strings"
)

// envLookup resolves credential variables.
type envLookup func(key string) (string, bool)

// newEnvLookup prefers the process environment and falls back to dotenv.
// Blank values count as unset.
func newEnvLookup(dotenv map[string]string) envLookup {
	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return value, true
		}
		if value, ok := dotenv[key]; ok && strings.TrimSpace(value) != "" {
			return value, true
		}
		return "", false
	}
}

func (c *Config) normalize(env envLookup) error {
	if env == nil {
		env = newEnvLookup(nil)
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM(env)
	c.normalizeAnalyzer(env)
	c.normalizeCapture()
	if err := c.normalizeVoice(); err != nil {
		return err
	}
	c.normalizeVideo()
	c.normalizeNotifications(env)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.cache_dir", &c.Paths.CacheDir, defaultCacheDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.script_dir", &c.Paths.ScriptDir, defaultScriptDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLLM(env envLookup) {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	// Environment credentials take precedence over the file.
	for _, key := range llmKeyEnv(c.LLM.Provider) {
		if value, ok := env(key); ok {
			c.LLM.APIKey = value
			break
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Provider == "openai" {
		// The OpenRouter defaults do not apply to the OpenAI SDK.
		if c.LLM.BaseURL == defaultOpenRouterURL {
			c.LLM.BaseURL = ""
		}
		if c.LLM.Model == defaultOpenRouterModel || c.LLM.Model == "" {
			c.LLM.Model = defaultOpenAIModel
		}
	} else {
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = defaultOpenRouterURL
		}
		if c.LLM.Model == "" {
			c.LLM.Model = defaultOpenRouterModel
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func llmKeyEnv(provider string) []string {
	if provider == "openai" {
		return []string{"DEMOFORGE_LLM_API_KEY", "OPENAI_API_KEY"}
	}
	return []string{"DEMOFORGE_LLM_API_KEY", "OPENROUTER_API_KEY"}
}

func (c *Config) normalizeAnalyzer(env envLookup) {
	if value, ok := env("GITHUB_TOKEN"); ok {
		c.Analyzer.GitHubToken = value
	}
	c.Analyzer.GitHubToken = strings.TrimSpace(c.Analyzer.GitHubToken)
	c.Analyzer.GitHubAPIURL = strings.TrimRight(strings.TrimSpace(c.Analyzer.GitHubAPIURL), "/")
	if c.Analyzer.GitHubAPIURL == "" {
		c.Analyzer.GitHubAPIURL = defaultGitHubAPIURL
	}
	if c.Analyzer.ReadmeMaxBytes <= 0 {
		c.Analyzer.ReadmeMaxBytes = defaultReadmeMaxBytes
	}
	if c.Analyzer.PageMaxBytes <= 0 {
		c.Analyzer.PageMaxBytes = defaultPageMaxBytes
	}
	if c.Analyzer.HTTPTimeoutSeconds <= 0 {
		c.Analyzer.HTTPTimeoutSeconds = defaultAnalyzerTimeout
	}
	if strings.TrimSpace(c.Analyzer.UserAgent) == "" {
		c.Analyzer.UserAgent = defaultUserAgent
	}
	c.Scripter.Source = strings.ToLower(strings.TrimSpace(c.Scripter.Source))
	if c.Scripter.Source == "" {
		c.Scripter.Source = defaultScriptSource
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.BrowserBinary = strings.TrimSpace(c.Capture.BrowserBinary)
	if c.Capture.BrowserBinary == "" {
		c.Capture.BrowserBinary = defaultBrowserBinary
	}
	if c.Capture.Concurrency <= 0 {
		c.Capture.Concurrency = defaultCaptureConcurrency
	}
	if c.Capture.RetryAttempts < 0 {
		c.Capture.RetryAttempts = 0
	}
	c.Capture.BrandColor = strings.TrimSpace(c.Capture.BrandColor)
	if c.Capture.BrandColor == "" {
		c.Capture.BrandColor = defaultBrandColor
	}
}

func (c *Config) normalizeVoice() error {
	c.Voice.Engine = strings.ToLower(strings.TrimSpace(c.Voice.Engine))
	if c.Voice.Engine == "" {
		c.Voice.Engine = defaultVoiceEngine
	}
	c.Voice.Gender = strings.ToLower(strings.TrimSpace(c.Voice.Gender))
	if c.Voice.Gender == "" {
		c.Voice.Gender = defaultVoiceGender
	}
	if c.Voice.Speed == 0 {
		c.Voice.Speed = defaultVoiceSpeed
	}
	if strings.TrimSpace(c.Voice.VoiceSamplePath) != "" {
		expanded, err := expandPath(c.Voice.VoiceSamplePath)
		if err != nil {
			return fmt.Errorf("voice.voice_sample_path: %w", err)
		}
		c.Voice.VoiceSamplePath = expanded
	}
	for _, binary := range []struct {
		value *string
		def   string
	}{
		{&c.Voice.KokoroBinary, defaultKokoroBinary},
		{&c.Voice.EdgeBinary, defaultEdgeBinary},
		{&c.Voice.PocketBinary, defaultPocketBinary},
	} {
		*binary.value = strings.TrimSpace(*binary.value)
		if *binary.value == "" {
			*binary.value = binary.def
		}
	}
	return nil
}

func (c *Config) normalizeVideo() {
	c.Video.Resolution = strings.ToLower(strings.TrimSpace(c.Video.Resolution))
	if c.Video.Resolution == "" {
		c.Video.Resolution = defaultResolution
	}
	c.Video.Transition = strings.ToLower(strings.TrimSpace(c.Video.Transition))
	if c.Video.Transition == "" {
		c.Video.Transition = defaultTransition
	}
	if strings.TrimSpace(c.Video.FFmpegBinary) == "" {
		c.Video.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Video.FFprobeBinary) == "" {
		c.Video.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Video.SubtitleFont) == "" {
		c.Video.SubtitleFont = defaultSubtitleFont
	}
	if c.Video.SubtitleSize <= 0 {
		c.Video.SubtitleSize = defaultSubtitleSize
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
	c.Cache.PruneSchedule = strings.TrimSpace(c.Cache.PruneSchedule)
}

func (c *Config) normalizeNotifications(env envLookup) {
	if value, ok := env("DEMOFORGE_NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
