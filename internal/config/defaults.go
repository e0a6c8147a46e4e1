package config

const (
	defaultConfigPath         = "~/.config/demoforge/config.toml"
	defaultDataDir            = "~/.local/share/demoforge"
	defaultOutputDir          = "~/.local/share/demoforge/output"
	defaultCacheDir           = "~/.cache/demoforge"
	defaultLogDir             = "~/.local/share/demoforge/logs"
	defaultScriptDir          = "~/.config/demoforge/scripts"
	defaultAPIBind            = "127.0.0.1:7500"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultLLMProvider        = "openrouter"
	defaultOpenRouterURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel    = "google/gemini-2.5-flash"
	defaultOpenAIModel        = "gpt-4o-mini"
	defaultLLMReferer         = "https://github.com/demoforge/demoforge"
	defaultLLMTitle           = "DemoForge"
	defaultLLMTimeoutSeconds  = 120
	defaultLLMRetryAttempts   = 5
	defaultGitHubAPIURL       = "https://api.github.com"
	defaultReadmeMaxBytes     = 64 * 1024
	defaultPageMaxBytes       = 2 * 1024 * 1024
	defaultAnalyzerTimeout    = 30
	defaultUserAgent          = "DemoForge/0.1"
	defaultScriptSource       = "llm"
	defaultWordsPerMinute     = 150
	defaultDurationTolerance  = 0.10
	defaultMaxVideoLength     = 300
	defaultMinSceneSeconds    = 3.0
	defaultBrowserBinary      = "chromium"
	defaultViewportWidth      = 2560
	defaultViewportHeight     = 1440
	defaultCaptureTimeoutMS   = 30000
	defaultCaptureConcurrency = 3
	defaultCaptureRetries     = 2
	defaultBrandColor         = "#1e293b"
	defaultVoiceEngine        = "kokoro"
	defaultVoiceSpeed         = 1.0
	defaultVoiceGender        = "female"
	defaultKokoroBinary       = "kokoro-tts"
	defaultEdgeBinary         = "edge-tts"
	defaultPocketBinary       = "pocket-tts"
	defaultVideoWidth         = 1920
	defaultVideoHeight        = 1080
	defaultResolution         = "1920x1080"
	defaultFPS                = 30
	defaultTransition         = "fade"
	defaultTransitionDuration = 1.0
	defaultSubtitleFont       = "DejaVu Sans"
	defaultSubtitleSize       = 24
	defaultCRF                = 20
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultCacheTTLHours      = 72
	defaultPruneSchedule      = "@every 1h"
	defaultMaxConcurrentRuns  = 2
	defaultNtfyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir,
			LogDir:    defaultLogDir,
			ScriptDir: defaultScriptDir,
			APIBind:   defaultAPIBind,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultOpenRouterURL,
			Model:          defaultOpenRouterModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Analyzer: Analyzer{
			GitHubAPIURL:       defaultGitHubAPIURL,
			ReadmeMaxBytes:     defaultReadmeMaxBytes,
			PageMaxBytes:       defaultPageMaxBytes,
			HTTPTimeoutSeconds: defaultAnalyzerTimeout,
			UserAgent:          defaultUserAgent,
		},
		Scripter: Scripter{
			Source:            defaultScriptSource,
			WordsPerMinute:    defaultWordsPerMinute,
			DurationTolerance: defaultDurationTolerance,
			MaxVideoLength:    defaultMaxVideoLength,
			MinSceneSeconds:   defaultMinSceneSeconds,
		},
		Capture: Capture{
			BrowserBinary:  defaultBrowserBinary,
			ViewportWidth:  defaultViewportWidth,
			ViewportHeight: defaultViewportHeight,
			TimeoutMillis:  defaultCaptureTimeoutMS,
			Concurrency:    defaultCaptureConcurrency,
			RetryAttempts:  defaultCaptureRetries,
			BrandColor:     defaultBrandColor,
		},
		Voice: Voice{
			Engine:       defaultVoiceEngine,
			Speed:        defaultVoiceSpeed,
			Gender:       defaultVoiceGender,
			KokoroBinary: defaultKokoroBinary,
			EdgeBinary:   defaultEdgeBinary,
			PocketBinary: defaultPocketBinary,
		},
		Video: Video{
			Resolution:         defaultResolution,
			FPS:                defaultFPS,
			Transition:         defaultTransition,
			TransitionDuration: defaultTransitionDuration,
			KenBurns:           true,
			BurnSubtitles:      true,
			SubtitleFont:       defaultSubtitleFont,
			SubtitleSize:       defaultSubtitleSize,
			CRF:                defaultCRF,
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
		},
		Cache: Cache{
			Enabled:       true,
			TTLHours:      defaultCacheTTLHours,
			PruneSchedule: defaultPruneSchedule,
		},
		Pipeline: Pipeline{
			MaxConcurrentRuns: defaultMaxConcurrentRuns,
			AnalyzeTimeout:    300,
			ScriptTimeout:     300,
			CaptureTimeout:    900,
			VoiceTimeout:      900,
			AssembleTimeout:   1800,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			OnComplete:     true,
			OnFailure:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
