package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"demoforge/internal/analytics"
	"demoforge/internal/config"
	"demoforge/internal/daemon"
	"demoforge/internal/daemonctl"
	"demoforge/internal/deps"
	"demoforge/internal/logging"
	"demoforge/internal/pipeline"
	"demoforge/internal/project"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic tees a debug-level JSON log into log_dir/debug.
	Diagnostic bool
	Version    string
}

// Run starts the daemon and blocks until SIGINT, SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "demoforged.log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		sessionID := uuid.NewString()
		debugPath := filepath.Join(cfg.Paths.LogDir, "debug", fmt.Sprintf("demoforged-%s.log", time.Now().UTC().Format("20060102T150405Z")))
		handler, closer, debugErr := logging.NewFileHandler(debugPath, slog.LevelDebug)
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug log: %v\n", debugErr)
		} else {
			defer closer.Close()
			logger = logging.TeeLogger(logger, handler).With(logging.String("session_id", sessionID))
			logger.Info("diagnostic mode enabled",
				logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
				logging.String("debug_log_path", debugPath),
			)
		}
	}

	logging.Retention{
		Dir:    cfg.Paths.LogDir,
		Days:   cfg.Logging.RetentionDays,
		Active: []string{logPath, filepath.Join(cfg.Paths.LogDir, "demoforge.log")},
	}.Prune(logger)
	logDependencySnapshot(logger, cfg)

	pidPath := daemonctl.PIDPath(cfg)
	if err := daemonctl.WritePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := project.Open(cfg)
	if err != nil {
		logger.Error("open project store", logging.Error(err))
		return err
	}

	adapters, err := pipeline.NewAdapters(cfg, nil, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build stage adapters: %w", err)
	}
	orch := pipeline.New(cfg, store, adapters, logger)
	tracker := analytics.NewTracker(store, logger)

	d, err := daemon.New(cfg, store, orch, tracker, logger, daemon.WithVersion(opts.Version))
	if err != nil {
		orch.Close()
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind and whether another daemon holds the lock"),
			logging.String(logging.FieldImpact, "no pipeline runs are accepted"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("demoforge daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []any{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("llm_provider", cfg.GetLLM().Provider),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.GetLLM().APIKey) != ""),
		logging.String("script_source", cfg.Scripter.Source),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(status.Command+"_available", status.Available))
	}
	logger.Info("dependency snapshot", attrs...)
}
