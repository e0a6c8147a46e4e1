package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testInputs struct {
	RepoURL      string            `json:"repo_url"`
	WebsiteURL   string            `json:"website_url"`
	Audience     string            `json:"audience"`
	TargetLength int               `json:"target_length"`
	Language     string            `json:"language"`
	VoiceEngine  string            `json:"voice_engine"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func baseInputs() testInputs {
	return testInputs{
		RepoURL:      "https://github.com/acme/demo",
		Audience:     "developer",
		TargetLength: 90,
		Language:     "en",
		VoiceEngine:  "kokoro",
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	in := baseInputs()
	in.Extra = map[string]string{"b": "2", "a": "1", "c": "3"}
	first, err := Fingerprint("scripting", in)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Fingerprint("scripting", in)
		if err != nil {
			t.Fatalf("Fingerprint: %v", err)
		}
		if again != first {
			t.Fatalf("fingerprint changed between calls: %s vs %s", first, again)
		}
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %q", first)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base, err := Fingerprint("voicing", baseInputs())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*testInputs)
	}{
		{"repo url", func(in *testInputs) { in.RepoURL = "https://github.com/acme/other" }},
		{"website url", func(in *testInputs) { in.WebsiteURL = "https://acme.dev" }},
		{"audience", func(in *testInputs) { in.Audience = "investor" }},
		{"target length", func(in *testInputs) { in.TargetLength = 60 }},
		{"language", func(in *testInputs) { in.Language = "de" }},
		{"voice engine", func(in *testInputs) { in.VoiceEngine = "edge" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInputs()
			tt.mutate(&in)
			got, err := Fingerprint("voicing", in)
			if err != nil {
				t.Fatalf("Fingerprint: %v", err)
			}
			if got == base {
				t.Fatalf("expected fingerprint to change when %s changes", tt.name)
			}
		})
	}

	other, err := Fingerprint("capturing", baseInputs())
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if other == base {
		t.Fatal("expected stage name to be part of the fingerprint")
	}
}

func TestFingerprintRejectsEmptyStage(t *testing.T) {
	if _, err := Fingerprint(" ", baseInputs()); err == nil {
		t.Fatal("expected error for empty stage")
	}
}

type payload struct {
	Title  string   `json:"title"`
	Scenes []string `json:"scenes"`
}

func TestRoundTripWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := New(t.TempDir(), true, time.Hour, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	want := payload{Title: "Acme", Scenes: []string{"intro", "scene_1"}}
	if err := store.Set(ctx, "scripting", "abc123", want, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(59 * time.Minute)
	var got payload
	hit, err := store.Get(ctx, "scripting", "abc123", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit within ttl")
	}
	if got.Title != want.Title || len(got.Scenes) != 2 {
		t.Fatalf("unexpected payload %+v", got)
	}
	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 0 || stats.Entries != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByStage["scripting"].Entries != 1 {
		t.Fatalf("expected per-stage breakdown, got %+v", stats.ByStage)
	}
}

func TestMissAfterExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	store := New(dir, true, time.Hour, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := store.Set(ctx, "analyzing", "fp1", payload{Title: "x"}, 10*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(10 * time.Minute)

	var got payload
	hit, err := store.Get(ctx, "analyzing", "fp1", &got)
	if err != nil {
		t.Fatalf("expected no error on expiry, got %v", err)
	}
	if hit {
		t.Fatal("expected miss after expiry")
	}
	if _, err := os.Stat(filepath.Join(dir, "analyzing", "fp1.json")); !os.IsNotExist(err) {
		t.Fatalf("expected expired entry removed, stat err=%v", err)
	}
	if stats := store.Stats(); stats.Expired != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCorruptEntryIsEvicted(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, true, time.Hour, nil)
	path := filepath.Join(dir, "capturing", "deadbeef.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got payload
	hit, err := store.Get(context.Background(), "capturing", "deadbeef", &got)
	if err != nil {
		t.Fatalf("corrupt entry must not surface an error, got %v", err)
	}
	if hit {
		t.Fatal("expected miss for corrupt entry")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected corrupt entry evicted, stat err=%v", err)
	}
}

func TestMismatchedFingerprintIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, true, time.Hour, nil)
	ctx := context.Background()
	if err := store.Set(ctx, "voicing", "aaa", payload{Title: "x"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := os.Rename(filepath.Join(dir, "voicing", "aaa.json"), filepath.Join(dir, "voicing", "bbb.json")); err != nil {
		t.Fatal(err)
	}
	var got payload
	if hit, err := store.Get(ctx, "voicing", "bbb", &got); hit || err != nil {
		t.Fatalf("expected silent miss, hit=%v err=%v", hit, err)
	}
}

func TestStagesAreNamespaced(t *testing.T) {
	store := New(t.TempDir(), true, time.Hour, nil)
	ctx := context.Background()
	if err := store.Set(ctx, "analyzing", "same", payload{Title: "analysis"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got payload
	hit, err := store.Get(ctx, "scripting", "same", &got)
	if err != nil || hit {
		t.Fatalf("expected miss across stages, hit=%v err=%v", hit, err)
	}
}

func TestDisabledStoreAlwaysMisses(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, false, time.Hour, nil)
	ctx := context.Background()
	if err := store.Set(ctx, "analyzing", "fp", payload{Title: "x"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got payload
	if hit, err := store.Get(ctx, "analyzing", "fp", &got); hit || err != nil {
		t.Fatalf("expected miss, hit=%v err=%v", hit, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("disabled store wrote %d entries", len(entries))
	}
}

func TestPruneAndClear(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	store := New(dir, true, time.Hour, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	mustSet := func(stage, fp string, ttl time.Duration) {
		t.Helper()
		if err := store.Set(ctx, stage, fp, payload{Title: fp}, ttl); err != nil {
			t.Fatalf("Set %s/%s: %v", stage, fp, err)
		}
	}
	mustSet("analyzing", "short", time.Minute)
	mustSet("analyzing", "long", 24*time.Hour)
	mustSet("voicing", "long", 24*time.Hour)
	if err := os.WriteFile(filepath.Join(dir, "voicing", "broken.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	now = now.Add(time.Hour)
	removed, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected expired and broken entries pruned, removed %d", removed)
	}
	if stats := store.Stats(); stats.Entries != 2 {
		t.Fatalf("expected 2 entries after prune, got %+v", stats)
	}

	removed, err = store.Clear("voicing")
	if err != nil {
		t.Fatalf("Clear stage: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 voicing entry cleared, got %d", removed)
	}
	removed, err = store.Clear("")
	if err != nil {
		t.Fatalf("Clear all: %v", err)
	}
	if removed != 1 || store.Stats().Entries != 0 {
		t.Fatalf("expected cache empty, removed %d", removed)
	}
}

func TestInvalidateAndKeyValidation(t *testing.T) {
	store := New(t.TempDir(), true, time.Hour, nil)
	ctx := context.Background()
	if err := store.Set(ctx, "analyzing", "fp", payload{Title: "x"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Invalidate("analyzing", "fp"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := store.Invalidate("analyzing", "fp"); err != nil {
		t.Fatalf("second Invalidate should be a no-op: %v", err)
	}
	var got payload
	if hit, _ := store.Get(ctx, "analyzing", "fp", &got); hit {
		t.Fatal("expected miss after invalidate")
	}
	if err := store.Set(ctx, "../escape", "fp", payload{}, 0); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}
