package daemonctl_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"demoforge/internal/api"
	"demoforge/internal/daemonctl"
	"demoforge/internal/progress"
	"demoforge/internal/testsupport"
)

func TestNewClientEmptyBind(t *testing.T) {
	if _, err := daemonctl.NewClient("  "); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	client, err := daemonctl.NewClient("127.0.0.1:7500")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.BaseURL() != "http://127.0.0.1:7500" {
		t.Fatalf("unexpected base url %q", client.BaseURL())
	}
}

func TestClientDecodesResponsesAndErrors(t *testing.T) {
	var gotStages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/projects":
			gotStages = r.URL.Query()["stage"]
			_ = json.NewEncoder(w).Encode(api.ProjectListResponse{Projects: []api.Project{{ID: "0123456789ab", Stage: "failed"}}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects/0123456789ab/run":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "pipeline already running", Kind: "pipeline_already_running"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/cache":
			_ = json.NewEncoder(w).Encode(api.CachePruneResponse{Removed: len(r.URL.Query().Get("stage"))})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "project missing", Kind: "not_found"})
		}
	}))
	defer srv.Close()

	client, err := daemonctl.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	projects, err := client.ListProjects(ctx, "failed", "", "complete")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 || strings.Join(gotStages, ",") != "failed,complete" {
		t.Fatalf("unexpected list %+v with stages %v", projects, gotStages)
	}

	_, err = client.Run(ctx, "0123456789ab")
	var apiErr *daemonctl.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict || apiErr.Kind != "pipeline_already_running" {
		t.Fatalf("expected conflict APIError, got %v", err)
	}
	if daemonctl.IsUnavailable(err) {
		t.Fatal("an HTTP error response is not unavailability")
	}

	if _, err := client.GetProject(ctx, "ffffffffffff"); !daemonctl.IsNotFound(err) || err.Error() != "project missing" {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := client.DeleteProject(ctx, "0123456789ab"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if removed, err := client.ClearCache(ctx, "voicing"); err != nil || removed != len("voicing") {
		t.Fatalf("ClearCache = %d, %v", removed, err)
	}
}

func TestFollowProgressParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/0123456789ab/progress" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		for i, stage := range []string{"analyzing", "scripting", "complete"} {
			data, _ := json.Marshal(progress.Snapshot{ProjectID: "0123456789ab", Stage: stage, Sequence: uint64(i + 1)})
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", i+1, data)
		}
		fmt.Fprint(w, "event: other\ndata: {}\n\n")
	}))
	defer srv.Close()

	client, err := daemonctl.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	var stages []string
	last, err := client.FollowProgress(context.Background(), "0123456789ab", func(s progress.Snapshot) {
		stages = append(stages, s.Stage)
	})
	if err != nil {
		t.Fatalf("FollowProgress: %v", err)
	}
	if strings.Join(stages, ",") != "analyzing,scripting,complete" || last.Sequence != 3 {
		t.Fatalf("unexpected stream %v, last %+v", stages, last)
	}

	if _, err := client.FollowProgress(context.Background(), "ffffffffffff", nil); !daemonctl.IsNotFound(err) {
		t.Fatalf("expected not found for unknown stream, got %v", err)
	}
}

func TestIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, err := daemonctl.NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Status(context.Background())
	if !daemonctl.IsUnavailable(err) {
		t.Fatalf("expected closed listener to be unavailable, got %v", err)
	}
	if daemonctl.IsUnavailable(errors.New("other")) || daemonctl.IsUnavailable(nil) {
		t.Fatal("did not expect generic error to be unavailable")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, store)

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()
	client, err := daemonctl.NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), client, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if status.Running {
		t.Fatal("offline snapshot must not report running")
	}
	if status.ProjectCounts["pending"] != 1 || status.LockFilePath != cfg.DaemonLockPath() {
		t.Fatalf("unexpected snapshot %+v", status)
	}
	if len(status.Checks) == 0 || len(status.Dependencies) == 0 {
		t.Fatalf("expected local checks, got %+v", status)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()
	client, _ := daemonctl.NewClient(addr)

	if _, err := daemonctl.Stop(context.Background(), client, cfg, 0); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}

	if err := os.WriteFile(daemonctl.PIDPath(cfg), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.Stop(context.Background(), client, cfg, 0); err == nil || !strings.Contains(err.Error(), "corrupt") {
		t.Fatalf("expected corrupt pid error, got %v", err)
	}
}
