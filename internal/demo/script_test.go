package demo_test

import (
	"math"
	"testing"

	"demoforge/internal/demo"
)

func TestSegmentsIncludeNarratedBookends(t *testing.T) {
	script := &demo.Script{
		IntroNarration: "Meet Acme.",
		Scenes: []demo.Scene{
			{ID: "scene_1", Type: demo.SceneScreenshot, Narration: "The dashboard.", Duration: 10, URL: "https://acme.dev"},
			{ID: "scene_2", Type: demo.SceneTitleCard, Narration: "Fast builds.", Duration: 8},
		},
		OutroNarration: "   ",
	}
	segments := script.Segments()
	if len(segments) != 3 {
		t.Fatalf("expected intro + 2 scenes, got %d", len(segments))
	}
	if segments[0].ID != demo.SegmentIntro || segments[0].Kind != demo.SegmentKindIntro {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[0].Duration <= 0 {
		t.Fatal("expected intro duration estimate")
	}
	if segments[2].Scene == nil || segments[2].Scene.ID != "scene_2" {
		t.Fatalf("expected scene pointer on last segment, got %+v", segments[2])
	}
}

func TestNormalizeAssignsIDsAndTypes(t *testing.T) {
	script := &demo.Script{Scenes: []demo.Scene{
		{Narration: "a", Duration: 5, URL: " https://acme.dev/docs ", Type: "SCREENSHOT"},
		{ID: "dup", Narration: "b", Duration: 5, Type: "video"},
		{ID: "dup", Narration: "c", Duration: 5},
		{ID: "intro", Narration: "d", Duration: 5, URL: "https://acme.dev"},
	}}
	script.Normalize()

	wantIDs := []string{"scene_1", "dup", "scene_3", "scene_4"}
	wantTypes := []demo.SceneType{demo.SceneScreenshot, demo.SceneTitleCard, demo.SceneTitleCard, demo.SceneScreenshot}
	for i, scene := range script.Scenes {
		if scene.ID != wantIDs[i] {
			t.Fatalf("scene %d id = %q, want %q", i, scene.ID, wantIDs[i])
		}
		if scene.Type != wantTypes[i] {
			t.Fatalf("scene %d type = %q, want %q", i, scene.Type, wantTypes[i])
		}
	}
	if script.Scenes[0].URL != "https://acme.dev/docs" {
		t.Fatalf("expected trimmed url, got %q", script.Scenes[0].URL)
	}
	if script.TotalDuration != 20 {
		t.Fatalf("expected total 20, got %v", script.TotalDuration)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		script  *demo.Script
		wantErr bool
	}{
		{"nil", nil, true},
		{"empty", &demo.Script{}, true},
		{"no narration", &demo.Script{Scenes: []demo.Scene{{ID: "s", Type: demo.SceneTitleCard, Duration: 3}}}, true},
		{"zero duration", &demo.Script{Scenes: []demo.Scene{{ID: "s", Type: demo.SceneTitleCard, Narration: "x"}}}, true},
		{"screenshot without url", &demo.Script{Scenes: []demo.Scene{{ID: "s", Type: demo.SceneScreenshot, Narration: "x", Duration: 3}}}, true},
		{"ok", &demo.Script{Scenes: []demo.Scene{{ID: "s", Type: demo.SceneDiagram, Narration: "x", Duration: 3}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.script.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	script := &demo.Script{Scenes: []demo.Scene{{Duration: 50}, {Duration: 49}}}
	if !script.WithinTolerance(90, 0.1) {
		t.Fatal("99s should be within 10% of 90s")
	}
	if script.WithinTolerance(80, 0.1) {
		t.Fatal("99s should not be within 10% of 80s")
	}
	if !script.WithinTolerance(0, 0.1) {
		t.Fatal("no target means no constraint")
	}
}

func TestEstimateSpeechSeconds(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"", 0},
		{"one two three four five", 2},
		{"Hello, world! It's fast.", 1.6},
		{"你好世界", 0.8},
	}
	for _, tt := range tests {
		got := demo.EstimateSpeechSeconds(tt.text, 150)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("EstimateSpeechSeconds(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestParseAudience(t *testing.T) {
	if a, err := demo.ParseAudience(" Investor "); err != nil || a != demo.AudienceInvestor {
		t.Fatalf("unexpected result %q %v", a, err)
	}
	if a, err := demo.ParseAudience(""); err != nil || a != demo.AudienceDeveloper {
		t.Fatalf("expected developer default, got %q %v", a, err)
	}
	if _, err := demo.ParseAudience("everyone"); err == nil {
		t.Fatal("expected error for unknown audience")
	}
}

func TestDemoWorthyFeaturesSorted(t *testing.T) {
	analysis := &demo.AnalysisResult{Features: []demo.Feature{
		{Name: "a", Importance: 3, DemoWorthy: true},
		{Name: "b", Importance: 9, DemoWorthy: false},
		{Name: "c", Importance: 7, DemoWorthy: true},
	}}
	got := analysis.DemoWorthyFeatures()
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "a" {
		t.Fatalf("unexpected features %+v", got)
	}
}
