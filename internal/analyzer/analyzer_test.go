package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"demoforge/internal/demo"
	"demoforge/internal/logging"
	"demoforge/internal/services"
	"demoforge/internal/services/llm"
)

type fakeCompleter struct {
	response string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeCompleter) HealthCheck(context.Context) error { return f.err }

const landingPage = `<!doctype html>
<html><head>
<title> Acme Deploy </title>
<meta name="description" content="Ship previews in seconds">
<script>var tracking = true;</script>
</head><body>
<nav><a href="/nav-only">Nav</a></nav>
<h1>Deploy on every push</h1>
<h2>Preview environments</h2>
<p>Acme builds and hosts every branch.</p>
<a href="/docs">Docs</a>
<a href="https://elsewhere.example/x">External</a>
<a href="#top">Top</a>
</body></html>`

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/demo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			t.Errorf("missing auth header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":             "demo",
			"html_url":         "https://github.com/acme/demo",
			"description":      "Preview deployments",
			"topics":           []string{"deploy", "preview"},
			"stargazers_count": 42,
			"license":          map[string]string{"spdx_id": "MIT"},
		})
	})
	mux.HandleFunc("/repos/acme/demo/languages", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int64{"TypeScript": 10, "Go": 900})
	})
	mux.HandleFunc("/repos/acme/demo/readme", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# Acme Demo\nDeploy previews."))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, completer llm.Completer, ghURL string) *Service {
	t.Helper()
	return &Service{
		llm:    completer,
		repos:  NewGitHubClient(ghURL, "gh-token", "demoforge-test", 1024, time.Second),
		pages:  NewWebFetcher("demoforge-test", 1<<16, time.Second, nil),
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestAnalyzeCombinesSources(t *testing.T) {
	gh := newGitHubServer(t)
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(landingPage))
	}))
	defer site.Close()

	completer := &fakeCompleter{response: "```json\n" + `{
		"product_name": "Acme Deploy",
		"tagline": "Previews for every branch",
		"category": "DevOps",
		"target_users": ["frontend teams", " "],
		"features": [
			{"name": "Preview URLs", "description": "per-branch", "importance": 6, "demo_worthy": true},
			{"name": "Rollbacks", "description": "one click", "importance": 14, "demo_worthy": true},
			{"name": "", "importance": 3}
		],
		"tech_stack": [],
		"use_cases": ["review UI changes"],
		"competitive_advantage": "fast",
		"demo_urls": ["` + site.URL + `/docs", "https://invented.example/"]
	}` + "\n```"}
	svc := newService(t, completer, gh.URL)

	var reports []float64
	result, err := svc.Analyze(context.Background(), demo.Source{
		RepoURL:    "https://github.com/acme/demo",
		WebsiteURL: site.URL,
	}, reporterFunc(func(f float64) { reports = append(reports, f) }))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.ProductName != "Acme Deploy" {
		t.Fatalf("unexpected product %q", result.ProductName)
	}
	if len(result.Features) != 2 || result.Features[0].Name != "Rollbacks" || result.Features[0].Importance != 10 {
		t.Fatalf("features not cleaned and ranked: %+v", result.Features)
	}
	if len(result.TechStack) != 2 || result.TechStack[0] != "Go" {
		t.Fatalf("expected tech stack from repository languages, got %v", result.TechStack)
	}
	if len(result.TargetUsers) != 1 {
		t.Fatalf("expected blank target users dropped, got %v", result.TargetUsers)
	}
	for _, u := range result.DemoURLs {
		if strings.Contains(u, "invented") {
			t.Fatalf("invented url kept: %v", result.DemoURLs)
		}
	}
	if len(result.DemoURLs) != 2 {
		t.Fatalf("expected website and docs urls, got %v", result.DemoURLs)
	}
	if !result.AnalyzedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected analyzed_at %v", result.AnalyzedAt)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 1 {
		t.Fatalf("expected final progress report of 1, got %v", reports)
	}

	prompt := completer.requests[0].User
	for _, want := range []string{"acme/demo", "Topics: deploy, preview", "Deploy previews.", "# Deploy on every push", "Ship previews in seconds"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if completer.requests[0].Schema == nil {
		t.Fatal("expected structured output schema")
	}
}

func TestAnalyzeFailsWhenNothingReachable(t *testing.T) {
	gh := httptest.NewServer(http.NotFoundHandler())
	defer gh.Close()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer site.Close()

	svc := newService(t, &fakeCompleter{}, gh.URL)
	_, err := svc.Analyze(context.Background(), demo.Source{RepoURL: "https://github.com/acme/demo", WebsiteURL: site.URL}, nil)
	if !errors.Is(err, services.ErrSourceUnreachable) {
		t.Fatalf("expected ErrSourceUnreachable, got %v", err)
	}
}

func TestAnalyzeIncompleteAnalysis(t *testing.T) {
	gh := newGitHubServer(t)
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"no features", `{"product_name": "Acme", "features": []}`, nil},
		{"unparseable", `I cannot help with that`, nil},
		{"llm error", "", errors.New("upstream 500")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, &fakeCompleter{response: tt.response, err: tt.err}, gh.URL)
			_, err := svc.Analyze(context.Background(), demo.Source{RepoURL: "https://github.com/acme/demo"}, nil)
			if !errors.Is(err, services.ErrAnalysisIncomplete) {
				t.Fatalf("expected ErrAnalysisIncomplete, got %v", err)
			}
		})
	}
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		raw         string
		owner, repo string
		wantErr     bool
	}{
		{raw: "https://github.com/acme/demo", owner: "acme", repo: "demo"},
		{raw: "https://www.github.com/acme/demo.git/", owner: "acme", repo: "demo"},
		{raw: "https://github.com/acme/demo/tree/main", owner: "acme", repo: "demo"},
		{raw: "https://gitlab.com/acme/demo", wantErr: true},
		{raw: "https://github.com/acme", wantErr: true},
	}
	for _, tt := range tests {
		owner, repo, err := ParseRepoURL(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.raw)
			}
			continue
		}
		if err != nil || owner != tt.owner || repo != tt.repo {
			t.Fatalf("%s: got %q/%q err=%v", tt.raw, owner, repo, err)
		}
	}
}

func TestParsePageSkipsChrome(t *testing.T) {
	base, _ := url.Parse("https://acme.dev/")
	info, err := ParsePage(strings.NewReader(landingPage), base)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if info.Title != "Acme Deploy" || info.Description != "Ship previews in seconds" {
		t.Fatalf("unexpected title/description %q / %q", info.Title, info.Description)
	}
	if len(info.Headings) != 2 || info.Headings[1].Level != 2 {
		t.Fatalf("unexpected headings %+v", info.Headings)
	}
	if len(info.Links) != 1 || info.Links[0].Href != "https://acme.dev/docs" {
		t.Fatalf("expected only same-host content links, got %+v", info.Links)
	}
	if strings.Contains(info.Text, "tracking") {
		t.Fatalf("script text leaked into page text: %q", info.Text)
	}
}

type reporterFunc func(float64)

func (f reporterFunc) Report(fraction float64, _ string, _, _ int) { f(fraction) }
