package project

import (
	"errors"
	"testing"

	"demoforge/internal/services"
)

func TestCanTransitionIsStrictlyForward(t *testing.T) {
	for _, from := range AllStages() {
		for _, to := range AllStages() {
			want := false
			if n, ok := next[from]; ok && n == to {
				want = true
			}
			if to == StageFailed && !from.Terminal() {
				want = true
			}
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestFailedReachableFromEveryNonTerminalStage(t *testing.T) {
	for _, s := range AllStages() {
		if s.Terminal() {
			continue
		}
		if !CanTransition(s, StageFailed) {
			t.Fatalf("expected %s -> failed to be allowed", s)
		}
	}
}

func TestNothingReturnsToPending(t *testing.T) {
	for _, s := range AllStages() {
		if CanTransition(s, StagePending) {
			t.Fatalf("%s -> pending must require an explicit reset", s)
		}
	}
}

func TestForwardWalkVisitsEveryWorkStage(t *testing.T) {
	s := StagePending
	var visited []Stage
	for !s.Terminal() {
		n, ok := s.Next()
		if !ok {
			t.Fatalf("no successor for %s", s)
		}
		visited = append(visited, n)
		s = n
	}
	if len(visited) != len(WorkStages)+1 || visited[len(visited)-1] != StageComplete {
		t.Fatalf("unexpected walk %v", visited)
	}
	for i, ws := range WorkStages {
		if ws.Index() != i+1 || !ws.Active() {
			t.Fatalf("unexpected index/active for %s", ws)
		}
	}
	if StagePending.Active() || StageComplete.Active() {
		t.Fatal("pending and complete are not work stages")
	}
}

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewID()
		if !ValidID(id) {
			t.Fatalf("invalid id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if ValidID("ABCDEF123456") || ValidID("abc") {
		t.Fatal("ValidID accepted a malformed id")
	}
}

func TestCreateParamsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr bool
		check   func(*testing.T, *Project)
	}{
		{
			name:   "repo only gets defaults",
			params: CreateParams{RepoURL: "https://github.com/acme/demo.git/"},
			check: func(t *testing.T, p *Project) {
				if p.Name != "demo" || p.Audience != "developer" || p.TargetLength != 90 || p.Language != "en" {
					t.Fatalf("unexpected defaults %+v", p)
				}
				if p.Stage != StagePending {
					t.Fatalf("expected pending, got %s", p.Stage)
				}
			},
		},
		{
			name:   "website names project after host",
			params: CreateParams{WebsiteURL: "https://www.acme.dev", Language: "pt-br", Audience: "Investor"},
			check: func(t *testing.T, p *Project) {
				if p.Name != "acme.dev" || p.Language != "pt-BR" || p.Audience != "investor" {
					t.Fatalf("unexpected project %+v", p)
				}
			},
		},
		{name: "auto language", params: CreateParams{RepoURL: "https://github.com/a/b", Language: "AUTO"}, check: func(t *testing.T, p *Project) {
			if p.Language != "auto" {
				t.Fatalf("expected auto, got %q", p.Language)
			}
		}},
		{name: "no source", params: CreateParams{Name: "x"}, wantErr: true},
		{name: "bad scheme", params: CreateParams{RepoURL: "ftp://acme"}, wantErr: true},
		{name: "too short", params: CreateParams{RepoURL: "https://github.com/a/b", TargetLength: 5}, wantErr: true},
		{name: "too long", params: CreateParams{RepoURL: "https://github.com/a/b", TargetLength: 301}, wantErr: true},
		{name: "bad audience", params: CreateParams{RepoURL: "https://github.com/a/b", Audience: "kids"}, wantErr: true},
		{name: "bad language", params: CreateParams{RepoURL: "https://github.com/a/b", Language: "not a tag!"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.params.normalize(DefaultLimits)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation marker, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			tt.check(t, p)
		})
	}
}
