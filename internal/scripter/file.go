package scripter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/logging"
	"demoforge/internal/services"
	"demoforge/internal/stage"
	"demoforge/internal/textutil"
)

// FileScripter loads hand-written scripts from a directory. Files are named
// after the project ID, the project name slug, or the product name slug.
type FileScripter struct {
	dir    string
	cfg    config.Scripter
	logger *slog.Logger
	now    func() time.Time
}

var _ stage.Scripter = (*FileScripter)(nil)

// NewFileScripter reads scripts from dir.
func NewFileScripter(dir string, cfg config.Scripter, logger *slog.Logger) *FileScripter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileScripter{dir: dir, cfg: cfg, logger: logging.NewComponentLogger(logger, "scripter"), now: time.Now}
}

// Candidates lists the file paths tried for req, in order.
func (f *FileScripter) Candidates(req stage.ScriptRequest) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || name == "untitled" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	add(req.ProjectID)
	add(textutil.Slug(req.ProjectName))
	if req.Analysis != nil {
		add(textutil.Slug(req.Analysis.ProductName))
	}
	var paths []string
	for _, name := range names {
		paths = append(paths, filepath.Join(f.dir, name+".yaml"), filepath.Join(f.dir, name+".yml"))
	}
	return paths
}

// Script loads the first matching file and fits it to the target length.
func (f *FileScripter) Script(ctx context.Context, req stage.ScriptRequest, reporter stage.Reporter) (*demo.Script, error) {
	reporter = stage.OrNop(reporter)
	logger := logging.WithContext(ctx, f.logger)
	candidates := f.Candidates(req)
	for _, path := range candidates {
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, services.Wrap(services.ErrScriptGenerationFailed, stageName, "open script", path, err)
		}
		reporter.Report(0.3, "loading "+filepath.Base(path), 0, 0)
		script, err := Import(file)
		file.Close()
		if err != nil {
			return nil, services.Wrap(services.ErrScriptGenerationFailed, stageName, "parse script", path, err)
		}
		if script.Audience == "" {
			script.Audience = req.Audience
		}
		if script.ProjectURL == "" {
			script.ProjectURL = req.ProjectURL
		}
		if script.Title == "" && req.Analysis != nil {
			script.Title = req.Analysis.ProductName
		}
		script.GeneratedAt = f.now().UTC()
		script.Normalize()
		if err := script.Validate(); err != nil {
			return nil, services.Wrap(services.ErrScriptGenerationFailed, stageName, "validate script", path, err)
		}
		enforcer := NewEnforcer(req.TargetLength, f.cfg.WordsPerMinute, f.cfg.DurationTolerance, f.cfg.MinSceneSeconds)
		if words := NarrationWords(script); !enforcer.WordsWithin(words) {
			logging.WarnWithContext(logger, "script narration off target", "script_length",
				logging.String("path", path),
				logging.Float64("words", words),
				logging.Int("target_words", enforcer.TargetWords()),
				logging.String(logging.FieldErrorHint, enforcer.Adjustment(words)),
				logging.String(logging.FieldImpact, "narration may run longer or shorter than the scene timing"))
		}
		enforcer.Fit(script)
		reporter.Report(1, fmt.Sprintf("script loaded: %d scenes", len(script.Scenes)), len(script.Scenes), len(script.Scenes))
		logger.Info("script loaded", logging.String("path", path), logging.Int("scenes", len(script.Scenes)))
		return script, nil
	}
	return nil, services.Wrap(services.ErrScriptGenerationFailed, stageName, "find script",
		fmt.Sprintf("no script file found (tried %s)", strings.Join(candidates, ", ")), nil)
}

// HealthCheck reports whether the script directory is readable.
func (f *FileScripter) HealthCheck(context.Context) stage.Health {
	info, err := os.Stat(f.dir)
	if err != nil {
		return stage.Unhealthy("scripter", err.Error())
	}
	if !info.IsDir() {
		return stage.Unhealthy("scripter", f.dir+" is not a directory")
	}
	return stage.Healthy("scripter")
}
