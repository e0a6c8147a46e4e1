package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"demoforge/internal/analytics"
	"demoforge/internal/api"
	"demoforge/internal/config"
	"demoforge/internal/deps"
	"demoforge/internal/logging"
	"demoforge/internal/pipeline"
	"demoforge/internal/preflight"
	"demoforge/internal/project"
)

// Daemon coordinates the background pipeline and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *project.Store
	orch    *pipeline.Orchestrator
	tracker *analytics.Tracker
	svc     *api.Service
	version string

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	scheduler *cron.Cron
	server    *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Version       string
	DatabasePath  string
	LockFilePath  string
	ActiveRuns    int
	MaxRuns       int
	ProjectCounts map[string]int
	Checks        []preflight.Result
	Dependencies  []deps.Status
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithVersion sets the version reported by /api/status.
func WithVersion(v string) Option {
	return func(d *Daemon) { d.version = v }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *project.Store, orch *pipeline.Orchestrator, tracker *analytics.Tracker, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	svc, err := api.NewService(api.Deps{
		Config:    cfg,
		Store:     store,
		Runner:    orch,
		Progress:  orch.Broadcaster(),
		Cache:     orch.Cache(),
		Analytics: tracker,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build control surface: %w", err)
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		orch:     orch,
		tracker:  tracker,
		svc:      svc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted runs, schedules cache
// pruning and starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another demoforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if n, err := d.orch.RecoverInterrupted(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "interrupted run recovery failed", "recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the project database with demoforge status"),
			logging.String(logging.FieldImpact, "projects left mid-run may need a manual re-run"),
		)
	} else if n > 0 {
		d.logger.Info("interrupted runs marked failed",
			logging.String(logging.FieldEventType, "runs_recovered"),
			logging.Int("count", n),
		)
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	scheduler, err := d.schedulePrune(runCtx)
	if err != nil {
		logging.WarnWithContext(d.logger, "cache prune schedule rejected", "prune_schedule_invalid",
			logging.Error(err),
			logging.String("schedule", d.cfg.Cache.PruneSchedule),
			logging.String(logging.FieldErrorHint, "fix cache.prune_schedule or run demoforge cache prune"),
			logging.String(logging.FieldImpact, "expired cache entries accumulate until pruned manually"),
		)
	}

	d.mu.Lock()
	d.server = server
	d.scheduler = scheduler
	d.cancel = cancel
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("demoforge daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", server.addr()),
	)
	return nil
}

// schedulePrune registers the cron job that prunes expired cache entries.
// A disabled cache or empty schedule yields a nil scheduler.
func (d *Daemon) schedulePrune(ctx context.Context) (*cron.Cron, error) {
	if !d.cfg.Cache.Enabled || d.cfg.Cache.PruneSchedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(d.cfg.Cache.PruneSchedule, func() {
		if _, err := d.svc.PruneCache(ctx); err != nil {
			logging.WarnWithContext(d.logger, "scheduled cache prune failed", "cache_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on cache_dir"),
				logging.String(logging.FieldImpact, "expired entries stay on disk until the next prune"),
			)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// Stop interrupts active runs, stops the API and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	server, scheduler, cancel := d.server, d.scheduler, d.cancel
	d.server, d.scheduler, d.cancel = nil, nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	server.stop()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-time.After(10 * time.Second):
		}
	}
	d.orch.Close()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "remove the lock file before restarting"),
			logging.String(logging.FieldImpact, "the next daemon start may be refused"),
		)
	}
	d.running.Store(false)
	d.logger.Info("demoforge daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service returns the control surface served over HTTP.
func (d *Daemon) Service() *api.Service {
	return d.svc
}

// Addr returns the address the API listens on, or "" when stopped.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server.addr()
}

// Status returns the current daemon status including preflight checks.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Version:      d.version,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		ActiveRuns:   d.orch.ActiveCount(),
		MaxRuns:      d.cfg.Pipeline.MaxConcurrentRuns,
		Checks:       preflight.RunAll(ctx, d.cfg),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	for _, h := range d.orch.StageHealth(ctx) {
		status.Checks = append(status.Checks, preflight.Result{Name: "stage " + h.Name, Passed: h.Ready, Detail: h.Detail})
	}
	if counts, err := d.svc.ProjectCounts(ctx); err == nil {
		status.ProjectCounts = counts
	} else {
		d.logger.Debug("project counts unavailable", logging.Error(err))
	}
	return status
}
