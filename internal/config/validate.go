package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	validProviders    = map[string]bool{"openrouter": true, "openai": true}
	validSources      = map[string]bool{"llm": true, "file": true}
	validEngines      = map[string]bool{"kokoro": true, "edge": true, "pocket": true}
	validGenders      = map[string]bool{"male": true, "female": true}
	validTransitions  = map[string]bool{"fade": true, "slideleft": true, "slideright": true, "wipeleft": true, "wiperight": true, "dissolve": true, "none": true}
	validLogFormats   = map[string]bool{"console": true, "json": true}
	validLogLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	cronScheduleParse = cron.ParseStandard
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateScripter(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLLM() error {
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("llm.provider %q is not supported (use openrouter or openai)", c.LLM.Provider)
	}
	if c.LLM.Provider == "openrouter" && c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set for openrouter")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateScripter() error {
	if !validSources[c.Scripter.Source] {
		return fmt.Errorf("scripter.source %q is not supported (use llm or file)", c.Scripter.Source)
	}
	if c.Scripter.WordsPerMinute <= 0 {
		return errors.New("scripter.words_per_minute must be positive")
	}
	if c.Scripter.DurationTolerance < 0 || c.Scripter.DurationTolerance >= 1 {
		return errors.New("scripter.duration_tolerance must be between 0 and 1")
	}
	if c.Scripter.MaxVideoLength <= 0 {
		return errors.New("scripter.max_video_length must be positive")
	}
	if c.Scripter.MinSceneSeconds < 0 {
		return errors.New("scripter.min_scene_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.ViewportWidth <= 0 || c.Capture.ViewportHeight <= 0 {
		return errors.New("capture viewport dimensions must be positive")
	}
	if c.Capture.TimeoutMillis <= 0 {
		return errors.New("capture.timeout_ms must be positive")
	}
	if !strings.HasPrefix(c.Capture.BrandColor, "#") || (len(c.Capture.BrandColor) != 7) {
		return fmt.Errorf("capture.brand_color %q must be a #rrggbb value", c.Capture.BrandColor)
	}
	if _, err := strconv.ParseUint(c.Capture.BrandColor[1:], 16, 32); err != nil {
		return fmt.Errorf("capture.brand_color %q must be a #rrggbb value", c.Capture.BrandColor)
	}
	return nil
}

func (c *Config) validateVoice() error {
	if !validEngines[c.Voice.Engine] {
		return fmt.Errorf("voice.engine %q is not supported (use kokoro, edge, or pocket)", c.Voice.Engine)
	}
	if !validGenders[c.Voice.Gender] {
		return fmt.Errorf("voice.gender %q must be male or female", c.Voice.Gender)
	}
	if c.Voice.Speed <= 0 || c.Voice.Speed > 3 {
		return errors.New("voice.speed must be in (0, 3]")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if _, _, err := parseResolution(c.Video.Resolution); err != nil {
		return fmt.Errorf("video.resolution: %w", err)
	}
	if c.Video.FPS <= 0 || c.Video.FPS > 120 {
		return errors.New("video.fps must be between 1 and 120")
	}
	if !validTransitions[c.Video.Transition] {
		return fmt.Errorf("video.transition %q is not supported", c.Video.Transition)
	}
	if c.Video.TransitionDuration < 0 {
		return errors.New("video.transition_duration must be zero or positive")
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return errors.New("video.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxConcurrentRuns <= 0 {
		return errors.New("pipeline.max_concurrent_runs must be positive")
	}
	for stage, timeout := range c.StageTimeouts() {
		if timeout <= 0 {
			return fmt.Errorf("pipeline timeout for %s must be positive", stage)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.PruneSchedule == "" {
		return nil
	}
	if _, err := cronScheduleParse(c.Cache.PruneSchedule); err != nil {
		return fmt.Errorf("cache.prune_schedule %q: %w", c.Cache.PruneSchedule, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

// parseResolution accepts WIDTHxHEIGHT as well as the 720p/1080p/1440p/4k shorthands.
func parseResolution(value string) (int, int, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "720p":
		return 1280, 720, nil
	case "1080p":
		return 1920, 1080, nil
	case "1440p":
		return 2560, 1440, nil
	case "4k", "2160p":
		return 3840, 2160, nil
	}
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q", value)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution width %q", parts[0])
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution height %q", parts[1])
	}
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return 0, 0, fmt.Errorf("resolution %q must use positive even dimensions", value)
	}
	return w, h, nil
}
