package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"demoforge/internal/analytics"
	"demoforge/internal/cache"
	"demoforge/internal/config"
	"demoforge/internal/logging"
	"demoforge/internal/progress"
	"demoforge/internal/project"
	"demoforge/internal/services"
)

// Runner starts and stops pipeline runs. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Launch(ctx context.Context, projectID string) error
	Cancel(projectID string) bool
	Active(projectID string) bool
	ActiveCount() int
}

// Deps wires a Service. Runner, Progress, Cache and Analytics are optional;
// operations that need a missing one fail with a configuration error.
type Deps struct {
	Config    *config.Config
	Store     *project.Store
	Runner    Runner
	Progress  *progress.Broadcaster
	Cache     *cache.Store
	Analytics *analytics.Tracker
	Logger    *slog.Logger
}

// Service implements the project control surface.
type Service struct {
	cfg       *config.Config
	store     *project.Store
	runner    Runner
	hub       *progress.Broadcaster
	cache     *cache.Store
	analytics *analytics.Tracker
	logger    *slog.Logger
}

// NewService validates deps and builds a Service.
func NewService(d Deps) (*Service, error) {
	if d.Config == nil {
		return nil, errors.New("configuration is required")
	}
	if d.Store == nil {
		return nil, errors.New("project store is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:       d.Config,
		store:     d.Store,
		runner:    d.Runner,
		hub:       d.Progress,
		cache:     d.Cache,
		analytics: d.Analytics,
		logger:    logging.NewComponentLogger(logger, "api"),
	}, nil
}

func (s *Service) running(id string) bool {
	return s.runner != nil && s.runner.Active(id)
}

func (s *Service) load(ctx context.Context, id string) (*project.Project, error) {
	id = strings.TrimSpace(id)
	if !project.ValidID(id) {
		return nil, services.Wrap(services.ErrNotFound, "project", "get", fmt.Sprintf("project %s", id), nil)
	}
	return s.store.MustGet(ctx, id)
}

func unavailable(op, what string) error {
	return services.Wrap(services.ErrConfiguration, "api", op, what+" is not available", nil)
}

// Health reports whether the project database is usable.
func (s *Service) Health(ctx context.Context) (HealthResponse, error) {
	health, err := s.store.CheckHealth(ctx)
	if err != nil || !health.DatabaseReadable || !health.IntegrityCheck {
		return HealthResponse{Status: "degraded", Database: health}, err
	}
	return HealthResponse{Status: "ok", Database: health}, nil
}

// CreateProject validates req and stores a new pending project.
func (s *Service) CreateProject(ctx context.Context, req CreateRequest) (ProjectDetail, error) {
	p, err := s.store.Create(ctx, project.CreateParams{
		Name:         req.Name,
		RepoURL:      req.RepoURL,
		WebsiteURL:   req.WebsiteURL,
		Audience:     req.Audience,
		TargetLength: req.TargetLength,
		Language:     req.Language,
	})
	if err != nil {
		return ProjectDetail{}, err
	}
	logging.WithContext(services.WithProjectID(ctx, p.ID), s.logger).Info("project created",
		logging.String(logging.FieldEventType, "project_created"),
		logging.String("name", p.Name),
		logging.String("audience", string(p.Audience)),
		logging.Int("target_length", p.TargetLength),
	)
	return DetailFromProject(p, false), nil
}

// GetProject returns a project with its artifacts.
func (s *Service) GetProject(ctx context.Context, id string) (ProjectDetail, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	return DetailFromProject(p, s.running(p.ID)), nil
}

// ListProjects returns projects newest first, optionally filtered by stage.
func (s *Service) ListProjects(ctx context.Context, stages ...project.Stage) ([]Project, error) {
	projects, err := s.store.List(ctx, stages...)
	if err != nil {
		return nil, err
	}
	return FromProjects(projects, s.running), nil
}

// ProjectCounts returns the number of projects in each stage.
func (s *Service) ProjectCounts(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStageCounts(stats), nil
}

// DeleteProject removes a project and its output directory. View events go
// with the project row. Projects with an active run are rejected with ErrConcurrentRun.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if s.running(p.ID) || p.Stage.Active() {
		return services.Wrap(services.ErrConcurrentRun, string(p.Stage), "delete",
			fmt.Sprintf("project %s has an active run; cancel it first", p.ID), nil)
	}
	if _, err := s.store.Delete(ctx, p.ID); err != nil {
		return err
	}

	logger := logging.WithContext(services.WithProjectID(ctx, p.ID), s.logger)
	if err := s.removeOutput(p.ID); err != nil {
		logging.WarnWithContext(logger, "project files not removed", "project_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the project directory under output_dir manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		)
	}
	if s.hub != nil {
		s.hub.Forget(p.ID)
	}
	logger.Info("project deleted", logging.String(logging.FieldEventType, "project_deleted"))
	return nil
}

func (s *Service) removeOutput(id string) error {
	root := filepath.Clean(s.cfg.Paths.OutputDir)
	dir := filepath.Clean(s.cfg.ProjectOutputDir(id))
	if root == "" || root == "." || dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %q outside output dir", dir)
	}
	return os.RemoveAll(dir)
}

// ExecutePipeline starts a background run and returns the project as it
// stands once the run is registered.
func (s *Service) ExecutePipeline(ctx context.Context, id string) (Project, error) {
	if s.runner == nil {
		return Project{}, unavailable("execute", "pipeline runner")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err := s.runner.Launch(ctx, p.ID); err != nil {
		return Project{}, err
	}
	logging.WithContext(services.WithProjectID(ctx, p.ID), s.logger).Info("pipeline run accepted",
		logging.String(logging.FieldEventType, "run_accepted"),
		logging.Int("run_count", p.RunCount+1),
	)
	if fresh, err := s.store.Get(ctx, p.ID); err == nil && fresh != nil {
		p = fresh
	}
	return FromProject(p, true), nil
}

// CancelRun asks an active run to stop at the next stage boundary.
func (s *Service) CancelRun(ctx context.Context, id string) (CancelResult, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return CancelResult{ProjectID: id, Outcome: CancelNotFound}, err
	}
	result := CancelResult{ProjectID: p.ID, Stage: string(p.Stage)}
	if s.runner == nil || !s.runner.Cancel(p.ID) {
		result.Outcome = CancelNotRunning
		return result, nil
	}
	result.Outcome = CancelRequested
	logging.WithContext(services.WithProjectID(ctx, p.ID), s.logger).Info("pipeline cancel requested",
		logging.String(logging.FieldEventType, "run_cancel_requested"),
		logging.String(logging.FieldStage, string(p.Stage)),
	)
	return result, nil
}

// SubscribeProgress streams a project's snapshots. The first value is the
// current snapshot; the channel closes after a terminal snapshot or when ctx
// ends.
func (s *Service) SubscribeProgress(ctx context.Context, id string) (*progress.Subscription, error) {
	if s.hub == nil {
		return nil, unavailable("subscribe", "progress broadcaster")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.running(p.ID) {
		current := CurrentSnapshot(p)
		// A retained mid-run snapshot with no run behind it would never end
		// the stream; the stored terminal state replaces it.
		if latest, ok := s.hub.Latest(p.ID); ok && !latest.Terminal() && current.Terminal() {
			s.hub.Publish(current)
		} else {
			s.hub.Seed(current)
		}
	}
	sub := s.hub.Subscribe(p.ID)
	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

// CurrentSnapshot returns the last persisted snapshot of p, or one derived
// from its stage when it never ran. A project in a terminal stage always
// yields a terminal snapshot, even when the stored progress was left mid-run.
func CurrentSnapshot(p *project.Project) progress.Snapshot {
	if p.Progress != nil && (!p.Stage.Terminal() || p.Progress.Stage == string(p.Stage)) {
		snap := *p.Progress
		snap.ProjectID = p.ID
		return snap
	}
	snap := progress.Snapshot{ProjectID: p.ID, Stage: string(p.Stage), UpdatedAt: p.UpdatedAt}
	if p.Progress != nil {
		snap.RunID = p.Progress.RunID
		snap.StartedAt = p.Progress.StartedAt
	}
	switch p.Stage {
	case project.StagePending:
		snap.Message = "not started"
	case project.StageComplete:
		snap.Fraction = 1
		snap.Message = "demo video ready"
	case project.StageFailed:
		snap.Error = p.ErrorMessage
	}
	return snap
}

// RecordView stores a player event for the project.
func (s *Service) RecordView(ctx context.Context, id string, req ViewEventRequest, clientIP, userAgent string) (analytics.ViewEvent, error) {
	if s.analytics == nil {
		return analytics.ViewEvent{}, unavailable("record_view", "analytics tracker")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return analytics.ViewEvent{}, err
	}
	return s.analytics.Record(ctx, analytics.ViewEvent{
		ProjectID: p.ID,
		Type:      analytics.EventType(req.EventType),
		Progress:  req.Progress,
		Duration:  req.Duration,
		UserAgent: userAgent,
		IPAddress: clientIP,
	})
}

// Analytics summarizes a project's view events.
func (s *Service) Analytics(ctx context.Context, id string) (analytics.Summary, error) {
	if s.analytics == nil {
		return analytics.Summary{}, unavailable("analytics", "analytics tracker")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return analytics.Summary{}, err
	}
	return s.analytics.Summarize(ctx, p.ID)
}

// CacheStats reports cache usage.
func (s *Service) CacheStats() (CacheStatsResponse, error) {
	if s.cache == nil {
		return CacheStatsResponse{}, unavailable("cache_stats", "stage cache")
	}
	stats := s.cache.Stats()
	return CacheStatsResponse{Stats: stats, HitRate: stats.HitRate()}, nil
}

// PruneCache removes expired cache entries.
func (s *Service) PruneCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, unavailable("cache_prune", "stage cache")
	}
	return s.cache.Prune(ctx)
}

// ClearCache removes every entry for stage, or the whole cache when stage
// is empty.
func (s *Service) ClearCache(stage string) (int, error) {
	if s.cache == nil {
		return 0, unavailable("cache_clear", "stage cache")
	}
	stage = strings.TrimSpace(stage)
	if stage != "" {
		parsed, ok := project.ParseStage(stage)
		if !ok || parsed.Index() == 0 {
			return 0, services.Wrap(services.ErrValidation, "api", "cache_clear",
				fmt.Sprintf("unknown stage %q", stage), nil)
		}
		stage = string(parsed)
	}
	return s.cache.Clear(stage)
}
