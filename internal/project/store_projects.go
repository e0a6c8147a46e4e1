package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"demoforge/internal/services"
)

// Create validates params and inserts a new pending project.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Project, error) {
	p, err := params.normalize(s.limits)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	// Only an ID collision is worth another attempt with a fresh ID.
	for attempt := 0; attempt < 3; attempt++ {
		p.ID = newID()
		_, err = s.execWithRetry(
			ctx,
			`INSERT INTO projects (
                id, name, repo_url, website_url, audience, target_length, language,
                stage, created_at, updated_at, fingerprints_json
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID,
			p.Name,
			nullableString(p.RepoURL),
			nullableString(p.WebsiteURL),
			string(p.Audience),
			p.TargetLength,
			p.Language,
			string(p.Stage),
			now.Format(time.RFC3339Nano),
			now.Format(time.RFC3339Nano),
			"{}",
		)
		if err == nil {
			return p, nil
		}
		if !isUniqueViolation(err) {
			break
		}
	}
	return nil, fmt.Errorf("insert project: %w", err)
}

// Get fetches a project by ID. A missing project returns (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// MustGet is Get with ErrNotFound for a missing project.
func (s *Store) MustGet(ctx context.Context, id string) (*Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, services.Wrap(services.ErrNotFound, "project", "get", fmt.Sprintf("project %s", id), nil)
	}
	return p, nil
}

// List returns projects newest first, optionally filtered by stage.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Project, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT ` + projectColumns + ` FROM projects`
	orderClause := ` ORDER BY created_at DESC, id`
	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = string(stage)
		}
		query := baseQuery + ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update persists every mutable field of p.
func (s *Store) Update(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("project is nil")
	}
	unlock := s.locks.Lock(p.ID)
	defer unlock()
	return s.save(ctx, p)
}

// Mutate loads a project, applies fn and saves it, all under the project's
// write lock. fn returning an error aborts without saving.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Project) error) (*Project, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.MustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project row. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	res, err := s.execWithRetry(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) save(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()
	columns := make([]any, 0, 7)
	for _, encode := range []func() (any, error){
		func() (any, error) { return encodeColumn(p.Analysis) },
		func() (any, error) { return encodeColumn(p.Script) },
		func() (any, error) { return encodeColumn(p.Captures) },
		func() (any, error) { return encodeColumn(p.Voice) },
		func() (any, error) { return encodeColumn(p.Video) },
		func() (any, error) {
			if p.Fingerprints == nil {
				return "{}", nil
			}
			return encodeColumn(&p.Fingerprints)
		},
		func() (any, error) { return encodeColumn(p.Progress) },
	} {
		v, err := encode()
		if err != nil {
			return fmt.Errorf("encode project %s: %w", p.ID, err)
		}
		columns = append(columns, v)
	}

	args := []any{
		p.Name,
		nullableString(p.RepoURL),
		nullableString(p.WebsiteURL),
		string(p.Audience),
		p.TargetLength,
		p.Language,
		string(p.Stage),
		nullableString(string(p.FailedStage)),
		nullableString(p.ErrorMessage),
		nullableString(p.OutputPath),
		p.RunCount,
		nullableTime(p.LastRunAt),
		p.UpdatedAt.Format(time.RFC3339Nano),
	}
	args = append(args, columns...)
	args = append(args, p.ID)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects
         SET name = ?, repo_url = ?, website_url = ?, audience = ?, target_length = ?,
             language = ?, stage = ?, failed_stage = ?, error_message = ?, output_path = ?,
             run_count = ?, last_run_at = ?, updated_at = ?,
             analysis_json = ?, script_json = ?, captures_json = ?, voice_json = ?,
             video_json = ?, fingerprints_json = ?, progress_json = ?
         WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "project", "update", fmt.Sprintf("project %s", p.ID), nil)
	}
	return nil
}
