package pipeline

import (
	"fmt"
	"log/slog"

	"demoforge/internal/analyzer"
	"demoforge/internal/assembler"
	"demoforge/internal/capturer"
	"demoforge/internal/config"
	"demoforge/internal/scripter"
	"demoforge/internal/services/llm"
	"demoforge/internal/stage"
	"demoforge/internal/voice"
)

// NewCompleter builds the LLM client selected by llm.provider.
func NewCompleter(cfg *config.Config) (llm.Completer, error) {
	settings := cfg.GetLLM()
	return llm.New(llm.Config{
		Provider:       settings.Provider,
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
		RetryAttempts:  settings.RetryAttempts,
	})
}

// NewAdapters wires the production stage adapters. completer may be nil when
// the scripter reads scripts from disk, but the analyzer always needs one.
func NewAdapters(cfg *config.Config, completer llm.Completer, logger *slog.Logger) (stage.Adapters, error) {
	if completer == nil {
		var err error
		completer, err = NewCompleter(cfg)
		if err != nil {
			return stage.Adapters{}, fmt.Errorf("build llm client: %w", err)
		}
	}
	script, err := scripter.New(cfg, completer, logger)
	if err != nil {
		return stage.Adapters{}, err
	}
	capture, err := capturer.NewService(cfg, logger)
	if err != nil {
		return stage.Adapters{}, fmt.Errorf("build capturer: %w", err)
	}
	return stage.Adapters{
		Analyzer:  analyzer.NewService(cfg, completer, logger),
		Scripter:  script,
		Capturer:  capture,
		Voicer:    voice.NewService(cfg, logger),
		Assembler: assembler.NewService(cfg, logger),
	}, nil
}
