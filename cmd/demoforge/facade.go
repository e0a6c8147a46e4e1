package main

import (
	"context"
	"fmt"

	"demoforge/internal/analytics"
	"demoforge/internal/api"
	"demoforge/internal/cache"
	"demoforge/internal/daemonctl"
	"demoforge/internal/project"
	"demoforge/internal/services"
)

// projectAPI is the subset of the control surface the CLI needs. It is served
// by the daemon when it runs and by a local service otherwise.
type projectAPI interface {
	Create(ctx context.Context, req api.CreateRequest) (api.ProjectDetail, error)
	List(ctx context.Context, stages []string) ([]api.Project, error)
	Get(ctx context.Context, id string) (api.ProjectDetail, error)
	Delete(ctx context.Context, id string) error
	Analytics(ctx context.Context, id string) (analytics.Summary, error)
	CacheStats(ctx context.Context) (api.CacheStatsResponse, error)
	PruneCache(ctx context.Context) (int, error)
	ClearCache(ctx context.Context, stage string) (int, error)
}

// --- daemon adapter ---

type projectHTTPAdapter struct {
	client *daemonctl.Client
}

func (a *projectHTTPAdapter) Create(ctx context.Context, req api.CreateRequest) (api.ProjectDetail, error) {
	return a.client.CreateProject(ctx, req)
}

func (a *projectHTTPAdapter) List(ctx context.Context, stages []string) ([]api.Project, error) {
	return a.client.ListProjects(ctx, stages...)
}

func (a *projectHTTPAdapter) Get(ctx context.Context, id string) (api.ProjectDetail, error) {
	return a.client.GetProject(ctx, id)
}

func (a *projectHTTPAdapter) Delete(ctx context.Context, id string) error {
	return a.client.DeleteProject(ctx, id)
}

func (a *projectHTTPAdapter) Analytics(ctx context.Context, id string) (analytics.Summary, error) {
	return a.client.Analytics(ctx, id)
}

func (a *projectHTTPAdapter) CacheStats(ctx context.Context) (api.CacheStatsResponse, error) {
	return a.client.CacheStats(ctx)
}

func (a *projectHTTPAdapter) PruneCache(ctx context.Context) (int, error) {
	return a.client.PruneCache(ctx)
}

func (a *projectHTTPAdapter) ClearCache(ctx context.Context, stage string) (int, error) {
	return a.client.ClearCache(ctx, stage)
}

// --- local adapter ---

type projectLocalAdapter struct {
	svc *api.Service
}

func (a *projectLocalAdapter) Create(ctx context.Context, req api.CreateRequest) (api.ProjectDetail, error) {
	return a.svc.CreateProject(ctx, req)
}

func (a *projectLocalAdapter) List(ctx context.Context, stages []string) ([]api.Project, error) {
	parsed := make([]project.Stage, 0, len(stages))
	for _, s := range stages {
		stage, ok := project.ParseStage(s)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "cli", "list", fmt.Sprintf("unknown stage %q", s), nil)
		}
		parsed = append(parsed, stage)
	}
	return a.svc.ListProjects(ctx, parsed...)
}

func (a *projectLocalAdapter) Get(ctx context.Context, id string) (api.ProjectDetail, error) {
	return a.svc.GetProject(ctx, id)
}

func (a *projectLocalAdapter) Delete(ctx context.Context, id string) error {
	return a.svc.DeleteProject(ctx, id)
}

func (a *projectLocalAdapter) Analytics(ctx context.Context, id string) (analytics.Summary, error) {
	return a.svc.Analytics(ctx, id)
}

func (a *projectLocalAdapter) CacheStats(context.Context) (api.CacheStatsResponse, error) {
	return a.svc.CacheStats()
}

func (a *projectLocalAdapter) PruneCache(ctx context.Context) (int, error) {
	return a.svc.PruneCache(ctx)
}

func (a *projectLocalAdapter) ClearCache(_ context.Context, stage string) (int, error) {
	return a.svc.ClearCache(stage)
}

// withProjects hands fn the daemon adapter when the daemon answers, or a
// local adapter over the project database.
func (c *commandContext) withProjects(ctx context.Context, fn func(projectAPI) error) error {
	if client := c.daemonClient(ctx); client != nil {
		return fn(&projectHTTPAdapter{client: client})
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := project.Open(cfg)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}
	defer store.Close()

	svc, err := api.NewService(api.Deps{
		Config:    cfg,
		Store:     store,
		Cache:     cache.New(cfg.Paths.CacheDir, cfg.Cache.Enabled, cfg.CacheTTL(), nil),
		Analytics: analytics.NewTracker(store, nil),
	})
	if err != nil {
		return err
	}
	return fn(&projectLocalAdapter{svc: svc})
}
