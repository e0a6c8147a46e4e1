package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"demoforge/internal/config"
	"demoforge/internal/fileutil"
	"demoforge/internal/logging"
	"demoforge/internal/pipeline"
	"demoforge/internal/progress"
	"demoforge/internal/project"
	"demoforge/internal/scripter"
	"demoforge/internal/services"
	"demoforge/internal/stage"
)

// RunProjectRequest runs one project in the calling process.
type RunProjectRequest struct {
	Config    *config.Config
	ProjectID string
	Logger    *slog.Logger
	// Adapters overrides the configured stage adapters.
	Adapters *stage.Adapters
	// OnProgress receives every snapshot in emission order.
	OnProgress func(progress.Snapshot)
}

// RunProject executes the pipeline inline and blocks until the run ends. The
// per-project file lock keeps it from overlapping a daemon run.
func RunProject(ctx context.Context, req RunProjectRequest) (*project.Project, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	store, err := project.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open project store: %w", err)
	}
	defer store.Close()

	var adapters stage.Adapters
	if req.Adapters != nil {
		adapters = *req.Adapters
	} else {
		adapters, err = pipeline.NewAdapters(cfg, nil, logger)
		if err != nil {
			return nil, err
		}
	}

	hub := progress.NewBroadcaster(0, logger)
	orch := pipeline.New(cfg, store, adapters, logger, pipeline.WithBroadcaster(hub))
	defer orch.Close()

	id := strings.TrimSpace(req.ProjectID)
	sub := hub.Subscribe(id)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range sub.C {
			if req.OnProgress != nil {
				req.OnProgress(snap)
			}
		}
	}()

	p, runErr := orch.Run(ctx, id)
	// A run rejected before it started never publishes a terminal snapshot.
	sub.Close()
	<-done
	return p, runErr
}

// ExportScriptRequest writes a project's script as YAML.
type ExportScriptRequest struct {
	Config    *config.Config
	ProjectID string
	// Output receives the YAML. When nil the script is written to the file
	// source directory under the project ID.
	Output io.Writer
}

// ExportScriptResult reports where the script went.
type ExportScriptResult struct {
	Path string
}

// ExportScript writes the project's current script.
func ExportScript(ctx context.Context, req ExportScriptRequest) (ExportScriptResult, error) {
	cfg := req.Config
	if cfg == nil {
		return ExportScriptResult{}, fmt.Errorf("configuration is required")
	}
	store, err := project.Open(cfg)
	if err != nil {
		return ExportScriptResult{}, fmt.Errorf("open project store: %w", err)
	}
	defer store.Close()

	p, err := store.MustGet(ctx, strings.TrimSpace(req.ProjectID))
	if err != nil {
		return ExportScriptResult{}, err
	}
	if p.Script == nil {
		return ExportScriptResult{}, services.Wrap(services.ErrValidation, "api", "export_script",
			fmt.Sprintf("project %s has no script yet; run it first", p.ID), nil)
	}
	if req.Output != nil {
		return ExportScriptResult{}, scripter.Export(req.Output, p.Script)
	}

	var buf bytes.Buffer
	if err := scripter.Export(&buf, p.Script); err != nil {
		return ExportScriptResult{}, err
	}
	path := filepath.Join(cfg.Paths.ScriptDir, p.ID+".yaml")
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return ExportScriptResult{}, err
	}
	return ExportScriptResult{Path: path}, nil
}
