package daemon_test

import (
	"context"
	"strings"
	"testing"

	"demoforge/internal/analytics"
	"demoforge/internal/config"
	"demoforge/internal/daemon"
	"demoforge/internal/pipeline"
	"demoforge/internal/project"
	"demoforge/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	store  *project.Store
	stubs  *testsupport.StubAdapters
	daemon *daemon.Daemon
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := testsupport.NewStubAdapters(cfg.Paths.OutputDir)
	orch := pipeline.New(cfg, store, stubs.Adapters(), nil)
	d, err := daemon.New(cfg, store, orch, analytics.NewTracker(store, nil), nil, daemon.WithVersion("test"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return &fixture{cfg: cfg, store: store, stubs: stubs, daemon: d}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t)

	status := f.daemon.Status(ctx)
	if !status.Running || status.Version != "test" || status.PID == 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if f.daemon.Addr() == "" {
		t.Fatal("expected a listening address")
	}

	// Second start should fail
	if err := f.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.daemon.Stop()
	if f.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if f.daemon.Addr() != "" {
		t.Fatal("expected no address after stop")
	}
}

func TestSecondInstanceIsRefused(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	orch := pipeline.New(f.cfg, f.store, f.stubs.Adapters(), nil)
	other, err := daemon.New(f.cfg, f.store, orch, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = other.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func TestStartFailsInterruptedRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testsupport.NewProject(t, f.store)
	if _, err := f.store.Transition(ctx, p.ID, project.StageAnalyzing, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	f.start(t)

	got, err := f.store.MustGet(ctx, p.ID)
	if err != nil {
		t.Fatalf("MustGet: %v", err)
	}
	if got.Stage != project.StageFailed || got.ErrorMessage != project.InterruptedMessage {
		t.Fatalf("expected interrupted failure, got %s %q", got.Stage, got.ErrorMessage)
	}
	if counts := f.daemon.Status(ctx).ProjectCounts; counts["failed"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestInvalidPruneScheduleDoesNotBlockStart(t *testing.T) {
	f := newFixture(t, testsupport.WithConfig(func(c *config.Config) {
		c.Cache.PruneSchedule = "every tuesday"
	}))
	f.start(t)
	if !f.daemon.Status(context.Background()).Running {
		t.Fatal("daemon should run without a prune schedule")
	}
}
