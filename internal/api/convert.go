package api

import (
	"fmt"
	"maps"
	"strings"

	"demoforge/internal/deps"
	"demoforge/internal/preflight"
	"demoforge/internal/project"
)

// FromProject converts a project record to its API representation. running
// reports whether a pipeline run currently holds the project.
func FromProject(p *project.Project, running bool) Project {
	if p == nil {
		return Project{}
	}
	dto := Project{
		ID:           p.ID,
		Name:         p.Name,
		RepoURL:      p.RepoURL,
		WebsiteURL:   p.WebsiteURL,
		Audience:     string(p.Audience),
		TargetLength: p.TargetLength,
		Language:     p.Language,
		Stage:        string(p.Stage),
		FailedStage:  string(p.FailedStage),
		ErrorMessage: p.ErrorMessage,
		Running:      running,
		RunCount:     p.RunCount,
		OutputPath:   p.OutputPath,
	}
	if p.Progress != nil {
		snap := *p.Progress
		dto.Progress = &snap
	}
	if p.Script != nil {
		dto.SceneCount = len(p.Script.Scenes)
	}
	if p.Video != nil && p.Stage == project.StageComplete {
		dto.VideoURL = VideoPath(p.ID)
		dto.VideoDuration = p.Video.Duration
	}
	if p.LastRunAt != nil {
		dto.LastRunAt = p.LastRunAt.UTC().Format(dateTimeFormat)
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromProjects converts a slice of project records into API DTOs.
func FromProjects(projects []*project.Project, running func(id string) bool) []Project {
	if len(projects) == 0 {
		return nil
	}
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, FromProject(p, running != nil && running(p.ID)))
	}
	return out
}

// DetailFromProject converts a project record including its artifacts.
func DetailFromProject(p *project.Project, running bool) ProjectDetail {
	if p == nil {
		return ProjectDetail{}
	}
	detail := ProjectDetail{
		Project:  FromProject(p, running),
		Analysis: p.Analysis,
		Script:   p.Script,
		Video:    p.Video,
	}
	if p.Captures != nil && len(p.Captures.Failures) > 0 {
		detail.CaptureFailures = append(detail.CaptureFailures, p.Captures.Failures...)
	}
	if len(p.Fingerprints) > 0 {
		detail.Fingerprints = maps.Clone(p.Fingerprints)
	}
	return detail
}

// ProjectPath is the API path of a project.
func ProjectPath(id string) string {
	return "/api/projects/" + strings.TrimSpace(id)
}

// ProgressPath is the SSE progress stream of a project.
func ProgressPath(id string) string {
	return ProjectPath(id) + "/progress"
}

// VideoPath serves a project's finished video.
func VideoPath(id string) string {
	return ProjectPath(id) + "/video"
}

// MergeStageCounts produces a string-keyed representation of project counts
// with every stage present.
func MergeStageCounts(stats map[project.Stage]int) map[string]int {
	out := make(map[string]int, len(project.AllStages()))
	for _, s := range project.AllStages() {
		out[string(s)] = stats[s]
	}
	return out
}

// FormatPercent renders a progress fraction for tables.
func FormatPercent(fraction float64) string {
	switch {
	case fraction <= 0:
		return "0%"
	case fraction >= 1:
		return "100%"
	default:
		return fmt.Sprintf("%.0f%%", fraction*100)
	}
}

// FromChecks converts preflight results for status payloads.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, len(results))
	for i, r := range results {
		out[i] = CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// FromDependencies converts binary checks for status payloads.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}
