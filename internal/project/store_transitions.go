package project

import (
	"context"
	"fmt"
	"time"

	"demoforge/internal/services"
)

// InterruptedMessage is recorded on runs that were cut off by a daemon stop.
const InterruptedMessage = "pipeline interrupted by daemon shutdown"

// Transition moves a project to stage to, applying fn to the loaded record
// first. Edges not allowed by CanTransition are rejected with ErrValidation.
func (s *Store) Transition(ctx context.Context, id string, to Stage, fn func(*Project)) (*Project, error) {
	return s.Mutate(ctx, id, func(p *Project) error {
		if !CanTransition(p.Stage, to) {
			return services.Wrap(services.ErrValidation, string(p.Stage), "transition",
				fmt.Sprintf("project %s cannot move from %s to %s", p.ID, p.Stage, to), nil)
		}
		if to == StageFailed {
			p.FailedStage = p.Stage
		}
		p.Stage = to
		if fn != nil {
			fn(p)
		}
		return nil
	})
}

// ResetForRun returns a project to pending at the start of a run. Artifacts and
// fingerprints are kept so unchanged stages can be restored from the cache.
// A project already inside a work stage cannot be reset.
func (s *Store) ResetForRun(ctx context.Context, id string) (*Project, error) {
	return s.Mutate(ctx, id, func(p *Project) error {
		if p.Stage.Active() {
			return services.Wrap(services.ErrConcurrentRun, string(p.Stage), "reset",
				fmt.Sprintf("project %s is mid-run", p.ID), nil)
		}
		now := time.Now().UTC()
		p.Stage = StagePending
		p.FailedStage = ""
		p.ErrorMessage = ""
		p.RunCount++
		p.LastRunAt = &now
		return nil
	})
}
