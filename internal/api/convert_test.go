package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"demoforge/internal/demo"
	"demoforge/internal/project"
	"demoforge/internal/services"
)

func TestFromProject(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	p := &project.Project{
		ID:           "0123456789ab",
		Name:         "demo",
		RepoURL:      "https://github.com/acme/demo",
		Audience:     demo.AudienceDeveloper,
		TargetLength: 60,
		Language:     "en",
		Stage:        project.StageAssembling,
		RunCount:     2,
		Script:       &demo.Script{Scenes: []demo.Scene{{ID: "scene-1"}, {ID: "scene-2"}}},
		Video:        &demo.Video{Path: "/videos/demo.mp4", Duration: 58.5},
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Minute),
	}

	dto := FromProject(p, true)
	if dto.Stage != "assembling" || !dto.Running || dto.SceneCount != 2 || dto.RunCount != 2 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.VideoURL != "" {
		t.Fatalf("video should not be linked before completion, got %q", dto.VideoURL)
	}
	if dto.CreatedAt != "2026-03-04T05:06:07.000Z" || dto.LastRunAt != "" {
		t.Fatalf("unexpected timestamps %q / %q", dto.CreatedAt, dto.LastRunAt)
	}

	p.Stage = project.StageComplete
	dto = FromProject(p, false)
	if dto.VideoURL != "/api/projects/0123456789ab/video" || dto.VideoDuration != 58.5 {
		t.Fatalf("unexpected video fields %q %v", dto.VideoURL, dto.VideoDuration)
	}
	if got := FromProject(nil, false); got.ID != "" {
		t.Fatalf("nil project should convert to zero value, got %+v", got)
	}
}

func TestDetailFromProjectCopiesArtifacts(t *testing.T) {
	p := &project.Project{
		ID:           "0123456789ab",
		Stage:        project.StageFailed,
		Captures:     &demo.CaptureSet{Failures: []demo.CaptureFailure{{SegmentID: "scene-2", Error: "timeout"}}},
		Fingerprints: map[string]string{"analyzing": "abc"},
	}
	detail := DetailFromProject(p, false)
	if len(detail.CaptureFailures) != 1 || detail.CaptureFailures[0].SegmentID != "scene-2" {
		t.Fatalf("unexpected capture failures %+v", detail.CaptureFailures)
	}
	detail.Fingerprints["analyzing"] = "changed"
	if p.Fingerprints["analyzing"] != "abc" {
		t.Fatal("detail fingerprints should not alias the project map")
	}
}

func TestMergeStageCounts(t *testing.T) {
	counts := MergeStageCounts(map[project.Stage]int{project.StageComplete: 3, project.StageFailed: 1})
	if len(counts) != len(project.AllStages()) {
		t.Fatalf("expected every stage, got %v", counts)
	}
	if counts["complete"] != 3 || counts["failed"] != 1 || counts["voicing"] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{-1, "0%"},
		{0, "0%"},
		{0.456, "46%"},
		{1, "100%"},
		{3, "100%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.in); got != tt.want {
			t.Errorf("FormatPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortProjectsNewestFirst(t *testing.T) {
	in := []Project{
		{ID: "a", CreatedAt: "2026-01-01T00:00:00Z"},
		{ID: "c", CreatedAt: "2026-02-01T00:00:00Z"},
		{ID: "b", CreatedAt: "2026-02-01T00:00:00Z"},
		{ID: "d"},
	}
	got := SortProjectsNewestFirst(in)
	order := ""
	for _, p := range got {
		order += p.ID
	}
	if order != "bcad" {
		t.Fatalf("unexpected order %q", order)
	}
	if in[0].ID != "a" {
		t.Fatal("input slice should not be reordered")
	}
	if SortProjectsNewestFirst(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", services.Wrap(services.ErrValidation, "project", "create", "bad", nil), http.StatusBadRequest},
		{"not found", services.Wrap(services.ErrNotFound, "project", "get", "gone", nil), http.StatusNotFound},
		{"busy", fmt.Errorf("launch: %w", services.ErrConcurrentRun), http.StatusConflict},
		{"unconfigured", services.Wrap(services.ErrConfiguration, "api", "cache", "off", nil), http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Fatalf("StatusCode = %d, want %d", got, tt.want)
			}
		})
	}
}
