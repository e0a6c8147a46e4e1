package testsupport

import (
	"context"
	"testing"

	"demoforge/internal/config"
	"demoforge/internal/project"
)

// MustOpenStore opens a project.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *project.Store {
	t.Helper()

	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject creates the acme/demo developer project used across tests.
// Fields of params that are set override the defaults.
func NewProject(t testing.TB, store *project.Store, params ...project.CreateParams) *project.Project {
	t.Helper()

	p := project.CreateParams{
		RepoURL:      "https://github.com/acme/demo",
		Audience:     "developer",
		TargetLength: 90,
	}
	if len(params) > 0 {
		override := params[0]
		if override.Name != "" {
			p.Name = override.Name
		}
		if override.RepoURL != "" || override.WebsiteURL != "" {
			p.RepoURL = override.RepoURL
			p.WebsiteURL = override.WebsiteURL
		}
		if override.Audience != "" {
			p.Audience = override.Audience
		}
		if override.TargetLength != 0 {
			p.TargetLength = override.TargetLength
		}
		if override.Language != "" {
			p.Language = override.Language
		}
	}
	created, err := store.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}
