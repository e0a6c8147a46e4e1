package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"demoforge/internal/services"
)

// projectLock is the advisory file lock that keeps two processes from driving
// the same project.
type projectLock struct {
	path string
	lock *flock.Flock
}

func lockProject(dir, projectID string) (*projectLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, "project-"+projectID+".lock")
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConcurrentRun, "pipeline", "lock",
			fmt.Sprintf("project %s is being run by another process", projectID), nil)
	}
	return &projectLock{path: path, lock: l}, nil
}

func (l *projectLock) release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release project lock: %w", err)
	}
	return nil
}
