package pipeline

import (
	"context"
	"errors"
	"testing"

	"demoforge/internal/project"
	"demoforge/internal/services"
	"demoforge/internal/testsupport"
)

func TestLockProjectRejectsSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first, err := lockProject(dir, "0123456789ab")
	if err != nil {
		t.Fatalf("lockProject: %v", err)
	}
	if _, err := lockProject(dir, "0123456789ab"); !errors.Is(err, services.ErrConcurrentRun) {
		t.Fatalf("expected ErrConcurrentRun, got %v", err)
	}
	other, err := lockProject(dir, "ba9876543210")
	if err != nil {
		t.Fatalf("lock of another project: %v", err)
	}
	_ = other.release()
	if err := first.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := lockProject(dir, "0123456789ab")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	_ = again.release()
}

func TestRecoverInterruptedSkipsLockedProjects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	orch := New(cfg, store, testsupport.NewStubAdapters(cfg.Paths.OutputDir).Adapters(), nil)
	t.Cleanup(orch.Close)
	ctx := context.Background()
	stale := testsupport.NewProject(t, store)
	live := testsupport.NewProject(t, store)
	idle := testsupport.NewProject(t, store)
	for _, id := range []string{stale.ID, live.ID} {
		if _, err := store.Transition(ctx, id, project.StageAnalyzing, nil); err != nil {
			t.Fatalf("Transition: %v", err)
		}
	}
	held, err := lockProject(cfg.LockDir(), live.ID)
	if err != nil {
		t.Fatalf("lockProject: %v", err)
	}
	defer held.release()

	n, err := orch.RecoverInterrupted(ctx)
	if err != nil {
		t.Fatalf("RecoverInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered project, got %d", n)
	}
	want := map[string]project.Stage{stale.ID: project.StageFailed, live.ID: project.StageAnalyzing, idle.ID: project.StagePending}
	for id, stage := range want {
		got, err := store.MustGet(ctx, id)
		if err != nil {
			t.Fatalf("MustGet: %v", err)
		}
		if got.Stage != stage {
			t.Fatalf("project %s: expected %s, got %s", id, stage, got.Stage)
		}
	}
	got, _ := store.MustGet(ctx, stale.ID)
	if got.ErrorMessage != project.InterruptedMessage {
		t.Fatalf("unexpected error message %q", got.ErrorMessage)
	}
}
