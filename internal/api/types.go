package api

import (
	"demoforge/internal/analytics"
	"demoforge/internal/cache"
	"demoforge/internal/demo"
	"demoforge/internal/progress"
	"demoforge/internal/project"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CreateRequest is the body of POST /api/projects.
type CreateRequest struct {
	Name         string `json:"name"`
	RepoURL      string `json:"repoUrl"`
	WebsiteURL   string `json:"websiteUrl"`
	Audience     string `json:"audience"`
	TargetLength int    `json:"targetLength"`
	Language     string `json:"language"`
}

// Project describes a project in a transport-friendly format.
type Project struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	RepoURL       string             `json:"repoUrl,omitempty"`
	WebsiteURL    string             `json:"websiteUrl,omitempty"`
	Audience      string             `json:"audience"`
	TargetLength  int                `json:"targetLength"`
	Language      string             `json:"language"`
	Stage         string             `json:"stage"`
	FailedStage   string             `json:"failedStage,omitempty"`
	ErrorMessage  string             `json:"errorMessage,omitempty"`
	Running       bool               `json:"running"`
	RunCount      int                `json:"runCount"`
	OutputPath    string             `json:"outputPath,omitempty"`
	VideoURL      string             `json:"videoUrl,omitempty"`
	VideoDuration float64            `json:"videoDuration,omitempty"`
	SceneCount    int                `json:"sceneCount,omitempty"`
	Progress      *progress.Snapshot `json:"progress,omitempty"`
	LastRunAt     string             `json:"lastRunAt,omitempty"`
	CreatedAt     string             `json:"createdAt,omitempty"`
	UpdatedAt     string             `json:"updatedAt,omitempty"`
}

// ProjectDetail adds stage artifacts to Project.
type ProjectDetail struct {
	Project
	Analysis        *demo.AnalysisResult  `json:"analysis,omitempty"`
	Script          *demo.Script          `json:"script,omitempty"`
	CaptureFailures []demo.CaptureFailure `json:"captureFailures,omitempty"`
	Video           *demo.Video           `json:"video,omitempty"`
	Fingerprints    map[string]string     `json:"fingerprints,omitempty"`
}

// ProjectListResponse wraps a collection of projects.
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Project ProjectDetail `json:"project"`
}

// RunResponse is returned when a run is accepted.
type RunResponse struct {
	ProjectID   string `json:"projectId"`
	Stage       string `json:"stage"`
	ProgressURL string `json:"progressUrl"`
}

// ViewEventRequest is the body of POST /api/projects/{id}/analytics/events.
type ViewEventRequest struct {
	EventType string  `json:"eventType"`
	Progress  float64 `json:"progress"`
	Duration  float64 `json:"duration"`
}

// AnalyticsResponse wraps a project's analytics summary.
type AnalyticsResponse struct {
	Summary analytics.Summary `json:"summary"`
}

// CacheStatsResponse reports cache usage.
type CacheStatsResponse struct {
	Stats   cache.Stats `json:"stats"`
	HitRate float64     `json:"hitRate"`
}

// CachePruneResponse reports how many cache entries were removed.
type CachePruneResponse struct {
	Removed int `json:"removed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckStatus is one preflight check result.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	Version       string             `json:"version,omitempty"`
	DatabasePath  string             `json:"databasePath"`
	LockFilePath  string             `json:"lockFilePath"`
	ActiveRuns    int                `json:"activeRuns"`
	MaxRuns       int                `json:"maxRuns"`
	ProjectCounts map[string]int     `json:"projectCounts"`
	Cache         cache.Stats        `json:"cache"`
	Checks        []CheckStatus      `json:"checks,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database project.DatabaseHealth `json:"database"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
