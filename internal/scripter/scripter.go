package scripter

import (
	"fmt"
	"log/slog"
	"strings"

	"demoforge/internal/config"
	"demoforge/internal/services"
	"demoforge/internal/services/llm"
	"demoforge/internal/stage"
)

// Sources accepted by scripter.source.
const (
	SourceLLM  = "llm"
	SourceFile = "file"
)

// New picks the scripter implementation configured in cfg.
func New(cfg *config.Config, completer llm.Completer, logger *slog.Logger) (stage.Scripter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Scripter.Source)) {
	case SourceLLM, "":
		return NewLLMScripter(cfg.Scripter, completer, logger), nil
	case SourceFile:
		return NewFileScripter(cfg.Paths.ScriptDir, cfg.Scripter, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "select scripter",
			fmt.Sprintf("unknown scripter source %q", cfg.Scripter.Source), nil)
	}
}
