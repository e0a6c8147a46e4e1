package project_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"demoforge/internal/demo"
	"demoforge/internal/progress"
	"demoforge/internal/project"
	"demoforge/internal/services"
	"demoforge/internal/testsupport"
)

func TestCreateGetListDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewProject(t, store)
	second := testsupport.NewProject(t, store, project.CreateParams{WebsiteURL: "https://acme.dev", Audience: "customer"})

	got, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.RepoURL != "https://github.com/acme/demo" || got.Stage != project.StagePending {
		t.Fatalf("unexpected project %+v", got)
	}

	missing, err := store.Get(ctx, "000000000000")
	if err != nil || missing != nil {
		t.Fatalf("expected nil,nil for missing project, got %+v, %v", missing, err)
	}
	if _, err := store.MustGet(ctx, "000000000000"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(all))
	}

	removed, err := store.Delete(ctx, second.ID)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, second.ID)
	if err != nil || removed {
		t.Fatalf("second Delete: removed=%v err=%v", removed, err)
	}
}

func TestArtifactsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, store)

	updated, err := store.Transition(ctx, p.ID, project.StageAnalyzing, func(p *project.Project) {
		p.Analysis = &demo.AnalysisResult{ProductName: "Acme", Features: []demo.Feature{{Name: "Deploys", Importance: 8, DemoWorthy: true}}}
		p.SetFingerprint(project.StageAnalyzing, "fp-analysis")
		p.Progress = &progress.Snapshot{ProjectID: p.ID, Stage: "analyzing", Fraction: 0.5}
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Stage != project.StageAnalyzing {
		t.Fatalf("unexpected stage %s", updated.Stage)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Analysis == nil || got.Analysis.ProductName != "Acme" || len(got.Analysis.Features) != 1 {
		t.Fatalf("analysis not persisted: %+v", got.Analysis)
	}
	if got.Fingerprint(project.StageAnalyzing) != "fp-analysis" {
		t.Fatalf("fingerprint not persisted: %+v", got.Fingerprints)
	}
	if got.Progress == nil || got.Progress.Fraction != 0.5 {
		t.Fatalf("progress not persisted: %+v", got.Progress)
	}
	if got.Script != nil || got.Video != nil {
		t.Fatal("unset artifacts should stay nil")
	}
}

func TestTransitionRejectsSkipsAndRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, store)

	if _, err := store.Transition(ctx, p.ID, project.StageCapturing, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected skip to be rejected, got %v", err)
	}
	for _, s := range []project.Stage{project.StageAnalyzing, project.StageScripting, project.StageCapturing, project.StageVoicing} {
		if _, err := store.Transition(ctx, p.ID, s, nil); err != nil {
			t.Fatalf("Transition to %s: %v", s, err)
		}
	}
	failed, err := store.Transition(ctx, p.ID, project.StageFailed, func(p *project.Project) { p.ErrorMessage = "tts crashed" })
	if err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}
	if failed.FailedStage != project.StageVoicing || failed.ErrorMessage != "tts crashed" {
		t.Fatalf("unexpected failure record %+v", failed)
	}
	if _, err := store.Transition(ctx, p.ID, project.StageAssembling, nil); err == nil {
		t.Fatal("failed is terminal")
	}

	reset, err := store.ResetForRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("ResetForRun: %v", err)
	}
	if reset.Stage != project.StagePending || reset.FailedStage != "" || reset.ErrorMessage != "" || reset.RunCount != 1 || reset.LastRunAt == nil {
		t.Fatalf("unexpected reset project %+v", reset)
	}
}

func TestResetRejectedMidRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, store)
	if _, err := store.Transition(ctx, p.ID, project.StageAnalyzing, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if _, err := store.ResetForRun(ctx, p.ID); !errors.Is(err, services.ErrConcurrentRun) {
		t.Fatalf("expected concurrent run error, got %v", err)
	}
}

func TestStatsCountsByStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	running := testsupport.NewProject(t, store)
	failed := testsupport.NewProject(t, store)
	if _, err := store.Transition(ctx, running.ID, project.StageAnalyzing, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if _, err := store.Transition(ctx, failed.ID, project.StageFailed, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	testsupport.NewProject(t, store)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[project.StageAnalyzing] != 1 || stats[project.StageFailed] != 1 || stats[project.StagePending] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestConcurrentMutateIsSerialized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Mutate(ctx, p.ID, func(p *project.Project) error {
				p.RunCount++
				return nil
			}); err != nil {
				t.Errorf("Mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RunCount != 20 {
		t.Fatalf("lost updates: run count %d", got.RunCount)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, store)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck || health.TotalProjects != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestCreateRetriesOnlyOnIDCollision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	params := project.CreateParams{Name: "Acme", RepoURL: "https://github.com/acme/demo", Audience: "developer", TargetLength: 90}

	existing := testsupport.NewProject(t, store)
	ids := []string{existing.ID, existing.ID, "0123456789ab"}
	calls := 0
	restore := project.SwapIDSource(func() string {
		id := ids[calls]
		calls++
		return id
	})
	defer restore()

	created, err := store.Create(ctx, params)
	if err != nil {
		t.Fatalf("Create after collisions: %v", err)
	}
	if created.ID != "0123456789ab" || calls != 3 {
		t.Fatalf("expected fresh ID on third attempt, got %s after %d calls", created.ID, calls)
	}

	calls = 0
	ids = []string{"0123456789ac", "0123456789ad", "0123456789ae"}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := store.Create(ctx, params); err == nil {
		t.Fatal("expected error from closed store")
	}
	if calls != 1 {
		t.Fatalf("non-collision error retried: %d attempts", calls)
	}
}

func TestOpenUpgradesVersionOneDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := testsupport.NewProject(t, store)
	for _, q := range []string{"DROP TABLE view_events", "UPDATE schema_version SET version = 1"} {
		if err := store.Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if got, err := reopened.MustGet(ctx, p.ID); err != nil || got.ID != p.ID {
		t.Fatalf("project lost in upgrade: %v", err)
	}
	err = reopened.AddView(ctx, project.ViewRecord{ProjectID: p.ID, EventType: "play", OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("AddView after upgrade: %v", err)
	}
}
