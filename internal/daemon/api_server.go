package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"demoforge/internal/api"
	"demoforge/internal/config"
	"demoforge/internal/logging"
	"demoforge/internal/project"
	"demoforge/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	svc    *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is empty")
	}
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
		svc:    d.svc,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("POST /api/projects/{id}/run", s.handleRun)
	mux.HandleFunc("POST /api/projects/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/projects/{id}/progress", s.handleProgressSSE)
	mux.HandleFunc("GET /api/projects/{id}/ws", s.handleProgressWS)
	mux.HandleFunc("GET /api/projects/{id}/video", s.handleVideo)
	mux.HandleFunc("POST /api/projects/{id}/analytics/events", s.handleRecordView)
	mux.HandleFunc("GET /api/projects/{id}/analytics", s.handleAnalytics)

	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/prune", s.handleCachePrune)
	mux.HandleFunc("DELETE /api/cache", s.handleCacheClear)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.svc.Health(r.Context())
	if err != nil {
		s.log().Debug("health check failed", logging.Error(err))
	}
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		Version:       status.Version,
		DatabasePath:  status.DatabasePath,
		LockFilePath:  status.LockFilePath,
		ActiveRuns:    status.ActiveRuns,
		MaxRuns:       status.MaxRuns,
		ProjectCounts: status.ProjectCounts,
		Checks:        api.FromChecks(status.Checks),
		Dependencies:  api.FromDependencies(status.Dependencies),
	}
	if stats, err := s.svc.CacheStats(); err == nil {
		payload.Cache = stats.Stats
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	detail, err := s.svc.CreateProject(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", api.ProjectPath(detail.ID))
	s.writeJSON(w, http.StatusCreated, api.ProjectResponse{Project: detail})
}

func (s *apiServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var stages []project.Stage
	for _, value := range r.URL.Query()["stage"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		stage, ok := project.ParseStage(trimmed)
		if !ok {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown stage %q", trimmed), nil))
			return
		}
		stages = append(stages, stage)
	}
	projects, err := s.svc.ListProjects(r.Context(), stages...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if projects == nil {
		projects = []api.Project{}
	}
	s.writeJSON(w, http.StatusOK, api.ProjectListResponse{Projects: projects})
}

func (s *apiServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProjectResponse{Project: detail})
}

func (s *apiServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.ExecutePipeline(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", api.ProgressPath(p.ID))
	s.writeJSON(w, http.StatusAccepted, api.RunResponse{
		ProjectID:   p.ID,
		Stage:       p.Stage,
		ProgressURL: api.ProgressPath(p.ID),
	})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.CancelRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if detail.VideoURL == "" || detail.Video == nil {
		s.writeError(w, services.Wrap(services.ErrNotFound, "api", "video",
			fmt.Sprintf("project %s has no finished video", detail.ID), nil))
		return
	}
	if _, err := os.Stat(detail.Video.Path); err != nil {
		s.writeError(w, services.Wrap(services.ErrNotFound, "api", "video",
			fmt.Sprintf("video file for project %s is missing", detail.ID), err))
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, detail.Video.Path)
}

func (s *apiServer) handleRecordView(w http.ResponseWriter, r *http.Request) {
	var req api.ViewEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	event, err := s.svc.RecordView(r.Context(), r.PathValue("id"), req, clientIP(r), r.UserAgent())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, event)
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Analytics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AnalyticsResponse{Summary: summary})
}

func (s *apiServer) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.svc.CacheStats()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleCachePrune(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.PruneCache(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CachePruneResponse{Removed: removed})
}

func (s *apiServer) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.ClearCache(r.URL.Query().Get("stage"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CachePruneResponse{Removed: removed})
}

// clientIP prefers the first X-Forwarded-For hop so views behind a local
// reverse proxy are attributed to the viewer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return r.RemoteAddr
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode",
			fmt.Sprintf("invalid request body: %v", err), nil))
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := api.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(s.log(), "api request failed", "api_request_failed",
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the daemon log for the failing operation"),
			logging.String(logging.FieldImpact, "the client request was not completed"),
		)
	}
	s.writeJSON(w, status, api.ErrorBody(err))
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
