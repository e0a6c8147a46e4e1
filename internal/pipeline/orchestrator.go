package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"demoforge/internal/cache"
	"demoforge/internal/config"
	"demoforge/internal/logging"
	"demoforge/internal/notifications"
	"demoforge/internal/progress"
	"demoforge/internal/project"
	"demoforge/internal/services"
	"demoforge/internal/stage"
)

// Orchestrator runs projects through the stage adapters.
type Orchestrator struct {
	cfg      *config.Config
	store    *project.Store
	adapters stage.Adapters
	cache    *cache.Store
	hub      *progress.Broadcaster
	notifier notifications.Service
	logger   *slog.Logger
	slots    *semaphore.Weighted
	timeouts map[project.Stage]time.Duration
	lockDir  string

	base     context.Context
	shutdown context.CancelFunc

	mu     sync.Mutex
	active map[string]*run
	wg     sync.WaitGroup
}

type run struct {
	id        string
	projectID string
	started   time.Time
	queued    progress.Snapshot
	cancelled atomic.Bool

	// ctx is done once Cancel is called or the run is unregistered.
	ctx  context.Context
	stop context.CancelFunc
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithCache replaces the cache built from configuration.
func WithCache(c *cache.Store) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithBroadcaster shares a progress hub with other components.
func WithBroadcaster(b *progress.Broadcaster) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.hub = b
		}
	}
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithStageTimeout overrides the timeout of one stage.
func WithStageTimeout(s project.Stage, d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeouts[s] = d
		}
	}
}

// New builds an orchestrator. Options may replace the cache, progress hub and
// notifier that are otherwise derived from cfg.
func New(cfg *config.Config, store *project.Store, adapters stage.Adapters, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	limit := int64(cfg.Pipeline.MaxConcurrentRuns)
	if limit <= 0 {
		limit = 1
	}
	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		adapters: adapters,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		slots:    semaphore.NewWeighted(limit),
		timeouts: make(map[project.Stage]time.Duration, len(project.WorkStages)),
		lockDir:  cfg.LockDir(),
		active:   make(map[string]*run),
	}
	for name, d := range cfg.StageTimeouts() {
		o.timeouts[project.Stage(name)] = d
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = cache.New(cfg.Paths.CacheDir, cfg.Cache.Enabled, cfg.CacheTTL(), logger)
	}
	if o.hub == nil {
		o.hub = progress.NewBroadcaster(0, logger)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}
	o.base, o.shutdown = context.WithCancel(context.Background())
	return o
}

// Broadcaster returns the progress hub runs publish to.
func (o *Orchestrator) Broadcaster() *progress.Broadcaster { return o.hub }

// Cache returns the stage output cache.
func (o *Orchestrator) Cache() *cache.Store { return o.cache }

// StageHealth reports the readiness of the configured stage adapters.
func (o *Orchestrator) StageHealth(ctx context.Context) []stage.Health {
	return o.adapters.Health(ctx)
}

// Run drives projectID to complete or failed and returns the final record.
// A project that already finished is reset to pending first; stages whose
// inputs did not change are restored from the cache.
func (o *Orchestrator) Run(ctx context.Context, projectID string) (*project.Project, error) {
	r, lock, err := o.start(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer o.unregister(r)
	return o.execute(ctx, r, lock)
}

// Launch starts a run in the background. It fails fast with ErrConcurrentRun
// when the project is already running here or in another process. The run
// outlives ctx's cancellation and stops only through Cancel or Close.
func (o *Orchestrator) Launch(ctx context.Context, projectID string) error {
	r, lock, err := o.start(ctx, projectID)
	if err != nil {
		return err
	}
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	unlink := context.AfterFunc(o.base, stop)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.unregister(r)
		defer stop()
		defer unlink()
		if _, err := o.execute(runCtx, r, lock); err != nil {
			logging.WithContext(services.WithProjectID(runCtx, projectID), o.logger).Debug(
				"launched run ended with error", logging.Error(err))
		}
	}()
	return nil
}

// start claims projectID in the in-process registry and the file lock.
func (o *Orchestrator) start(ctx context.Context, projectID string) (*run, *projectLock, error) {
	if _, err := o.store.MustGet(ctx, projectID); err != nil {
		return nil, nil, err
	}
	r, err := o.register(projectID)
	if err != nil {
		return nil, nil, err
	}
	lock, err := lockProject(o.lockDir, projectID)
	if err != nil {
		o.unregister(r)
		return nil, nil, err
	}
	// The hub is reset before the caller regains control so a subscriber
	// arriving right after Launch never sees the previous run's result.
	o.hub.Reset(projectID)
	r.queued = o.hub.Publish(progress.Snapshot{
		ProjectID: projectID,
		RunID:     r.id,
		Stage:     string(project.StagePending),
		Message:   "run queued",
		StartedAt: r.started,
		UpdatedAt: time.Now().UTC(),
	})
	return r, lock, nil
}

// Cancel asks an active run to stop. A run still waiting for a slot stops
// at once; otherwise the stage in flight finishes (or times out) and the
// project then moves to failed. It reports whether a run was active.
func (o *Orchestrator) Cancel(projectID string) bool {
	o.mu.Lock()
	r, ok := o.active[projectID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	r.cancelled.Store(true)
	r.stop()
	logging.WithContext(services.WithProjectID(context.Background(), projectID), o.logger).Info(
		"pipeline cancel requested",
		logging.String(logging.FieldRunID, r.id),
	)
	return true
}

// Active reports whether projectID has a run in this process.
func (o *Orchestrator) Active(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[projectID]
	return ok
}

// ActiveCount returns the number of runs in this process.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Wait blocks until every launched run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close interrupts launched runs and waits for them to finish.
func (o *Orchestrator) Close() {
	o.shutdown()
	o.wg.Wait()
}

func (o *Orchestrator) register(projectID string) (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.active[projectID]; ok {
		return nil, services.Wrap(services.ErrConcurrentRun, "pipeline", "start",
			fmt.Sprintf("project %s already has an active run", projectID), nil)
	}
	r := &run{id: uuid.NewString(), projectID: projectID, started: time.Now().UTC()}
	r.ctx, r.stop = context.WithCancel(context.Background())
	o.active[projectID] = r
	return r, nil
}

func (o *Orchestrator) unregister(r *run) {
	r.stop()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[r.projectID] == r {
		delete(o.active, r.projectID)
	}
}

// runState is the mutable view of one run shared by its stages.
type runState struct {
	run     *run
	project *project.Project
	fps     map[project.Stage]string

	mu   sync.Mutex
	last progress.Snapshot
}

func (st *runState) fingerprint(s project.Stage) string {
	return st.fps[s]
}

func (o *Orchestrator) execute(ctx context.Context, r *run, lock *projectLock) (*project.Project, error) {
	ctx = services.WithProjectID(ctx, r.projectID)
	ctx = services.WithRunID(ctx, r.id)
	persist := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, o.logger)

	defer func() {
		if err := lock.release(); err != nil {
			logging.WarnWithContext(logger, "project lock release failed", "lock_release_failed",
				logging.Error(err),
				logging.String("lock", lock.path),
				logging.String(logging.FieldErrorHint, "remove the stale lock file if runs keep conflicting"),
				logging.String(logging.FieldImpact, "the next run of this project may be refused"),
			)
		}
	}()

	if _, err := o.recoverInterrupted(persist, logger, r.projectID); err != nil {
		return nil, err
	}
	p, err := o.store.ResetForRun(persist, r.projectID)
	if err != nil {
		return nil, err
	}
	st := &runState{run: r, project: p, fps: make(map[project.Stage]string, len(project.WorkStages)), last: r.queued}

	if err := o.acquireSlot(ctx, st); err != nil {
		return o.fail(persist, st, logger, err)
	}
	defer o.slots.Release(1)

	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("name", p.Name),
		logging.String("source", p.Source().PrimaryURL()),
		logging.Int("run_count", p.RunCount),
	)

	for _, s := range o.steps() {
		if err := o.interrupted(ctx, r); err != nil {
			return o.fail(persist, st, logger, err)
		}
		next, err := o.store.Transition(persist, r.projectID, s.stage, nil)
		if err != nil {
			return o.fail(persist, st, logger, err)
		}
		st.project = next
		if err := o.runStep(ctx, st, s); err != nil {
			return o.fail(persist, st, logger, err)
		}
	}
	return o.complete(persist, st, logger)
}

// recoverInterrupted fails a project left mid-stage by a process that died.
// Holding the project lock proves no other run is driving it. The stored
// progress is replaced with a terminal snapshot, which is returned; nil means
// nothing needed recovery.
func (o *Orchestrator) recoverInterrupted(ctx context.Context, logger *slog.Logger, projectID string) (*progress.Snapshot, error) {
	p, err := o.store.MustGet(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.Stage.Active() {
		return nil, nil
	}
	logger.Info("recovering interrupted run",
		logging.Args(logging.DecisionAttrs("interrupted_run", "fail", "project left in "+string(p.Stage)+" without a live run")...)...)
	var snap progress.Snapshot
	_, err = o.store.Transition(ctx, projectID, project.StageFailed, func(p *project.Project) {
		p.ErrorMessage = project.InterruptedMessage
		snap = interruptedSnapshot(p)
		p.Progress = &snap
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// interruptedSnapshot is the terminal snapshot of a run its process never
// finished. It keeps the dead run's identity when one was recorded.
func interruptedSnapshot(p *project.Project) progress.Snapshot {
	snap := progress.Snapshot{
		ProjectID: p.ID,
		Stage:     string(project.StageFailed),
		Message:   fmt.Sprintf("%s interrupted", p.FailedStage),
		Error:     project.InterruptedMessage,
		ErrorKind: services.Details(services.ErrCancelled).Kind,
		UpdatedAt: time.Now().UTC(),
	}
	if prev := p.Progress; prev != nil {
		snap.RunID = prev.RunID
		snap.StartedAt = prev.StartedAt
	}
	return snap
}

// RecoverInterrupted fails every project left in a work stage whose lock is
// free. Projects driven by another live process keep their stage. It returns
// the number of projects failed.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) (int, error) {
	projects, err := o.store.List(ctx, project.WorkStages...)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, p := range projects {
		if o.Active(p.ID) {
			continue
		}
		lock, err := lockProject(o.lockDir, p.ID)
		if errors.Is(err, services.ErrConcurrentRun) {
			continue
		}
		if err != nil {
			return recovered, err
		}
		logger := logging.WithContext(services.WithProjectID(ctx, p.ID), o.logger)
		snap, err := o.recoverInterrupted(ctx, logger, p.ID)
		_ = lock.release()
		if err != nil {
			return recovered, err
		}
		if snap != nil {
			o.hub.Publish(*snap)
			recovered++
		}
	}
	return recovered, nil
}

func (o *Orchestrator) acquireSlot(ctx context.Context, st *runState) error {
	if o.slots.TryAcquire(1) {
		return nil
	}
	o.publish(st, progress.Snapshot{Stage: string(project.StagePending), Message: "waiting for a pipeline slot"})

	// The between-stages check cannot see a Cancel while the run is parked
	// here, so the wait also ends on the run's own context.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unlink := context.AfterFunc(st.run.ctx, cancel)
	defer unlink()

	if err := o.slots.Acquire(waitCtx, 1); err != nil {
		if st.run.cancelled.Load() {
			return services.Wrap(services.ErrCancelled, string(project.StagePending), "cancel", "run cancelled by request", err)
		}
		return services.Wrap(services.ErrCancelled, string(project.StagePending), "queue", project.InterruptedMessage, err)
	}
	return nil
}

// interrupted reports a cancel request or a shutdown between stages.
func (o *Orchestrator) interrupted(ctx context.Context, r *run) error {
	if r.cancelled.Load() {
		return services.Wrap(services.ErrCancelled, "pipeline", "cancel", "run cancelled by request", nil)
	}
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "pipeline", "shutdown", project.InterruptedMessage, err)
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, st *runState, logger *slog.Logger) (*project.Project, error) {
	snap := o.snapshot(st, progress.Snapshot{Stage: string(project.StageComplete), Fraction: 1, Message: "demo video ready"})
	p, err := o.store.Transition(ctx, st.run.projectID, project.StageComplete, func(p *project.Project) {
		p.Progress = &snap
		if p.Video != nil {
			p.OutputPath = p.Video.Path
		}
	})
	if err != nil {
		return o.fail(ctx, st, logger, err)
	}
	o.hub.Publish(snap)
	elapsed := time.Since(st.run.started)
	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.String("output", p.OutputPath),
		logging.Duration("pipeline_duration", elapsed),
	)
	if err := o.notifier.NotifyRunCompleted(ctx, p.Name, p.OutputPath, elapsed); err != nil {
		logging.WarnWithContext(logger, "completion notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push notification for this run"),
		)
	}
	return p, nil
}

// fail moves the project to failed, publishes the terminal snapshot and
// returns the run error unchanged.
func (o *Orchestrator) fail(ctx context.Context, st *runState, logger *slog.Logger, runErr error) (*project.Project, error) {
	details := services.Details(runErr)
	failedAt := project.StagePending
	if st.project != nil {
		failedAt = st.project.Stage
	}
	snap := o.snapshot(st, progress.Snapshot{
		Stage:     string(project.StageFailed),
		Message:   fmt.Sprintf("%s failed", failedAt),
		Error:     details.Message,
		ErrorKind: details.Kind,
	})
	p, err := o.store.Transition(ctx, st.run.projectID, project.StageFailed, func(p *project.Project) {
		p.ErrorMessage = details.Message
		p.Progress = &snap
	})
	if err != nil {
		logging.ErrorWithContext(logger, "failed to persist pipeline failure", "pipeline_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldStage, string(failedAt)),
		)
		p = st.project
	}
	o.hub.Publish(snap)

	attrs := append([]logging.Attr{logging.String(logging.FieldStage, string(failedAt))}, logging.ErrorAttrs(runErr)...)
	attrs = append(attrs, logging.Duration("pipeline_duration", time.Since(st.run.started)))
	if errors.Is(runErr, services.ErrCancelled) {
		logger.Info("pipeline cancelled", logging.Args(append(attrs, logging.String(logging.FieldEventType, "pipeline_cancelled"))...)...)
	} else {
		logging.ErrorWithContext(logger, "pipeline failed", "pipeline_failed", append(attrs,
			logging.Alert("stage_failure"),
			logging.String(logging.FieldErrorHint, failureHint(details.Marker)),
			logging.String(logging.FieldImpact, "no video was produced; artifacts are kept for a re-run"),
		)...)
	}
	name := ""
	if p != nil {
		name = p.Name
	}
	if err := o.notifier.NotifyRunFailed(ctx, name, string(failedAt), errors.New(details.Message)); err != nil {
		logging.WarnWithContext(logger, "failure notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push notification for this run"),
		)
	}
	return p, runErr
}

func failureHint(marker error) string {
	switch marker {
	case services.ErrSourceUnreachable:
		return "check the repository or website URL and network access"
	case services.ErrStageTimeout:
		return "raise the stage timeout in the [pipeline] config section"
	case services.ErrExternalTool:
		return "run demoforge status to verify external tools"
	case services.ErrConfiguration:
		return "fix the configuration and re-run the project"
	case services.ErrCaptureFailed:
		return "enable capture.fallback_on_failure or check the browser"
	default:
		return "inspect the project error and re-run; cached stages are reused"
	}
}

// snapshot stamps snap with the run identity without publishing it.
func (o *Orchestrator) snapshot(st *runState, snap progress.Snapshot) progress.Snapshot {
	snap.ProjectID = st.run.projectID
	snap.RunID = st.run.id
	snap.StartedAt = st.run.started
	snap.UpdatedAt = time.Now().UTC()
	return snap
}

func (o *Orchestrator) publish(st *runState, snap progress.Snapshot) progress.Snapshot {
	out := o.hub.Publish(o.snapshot(st, snap))
	st.mu.Lock()
	st.last = out
	st.mu.Unlock()
	return out
}

func (st *runState) lastSnapshot() progress.Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.last
}
