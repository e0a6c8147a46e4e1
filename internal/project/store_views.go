package project

import (
	"context"
	"database/sql"
	"fmt"
		"time"

	"demoforge/internal/services"
)

// ViewRecord is one stored player event.
type ViewRecord struct {
	ProjectID  string
	EventType  string
	OccurredAt time.Time
	Progress   float64
	Duration   float64
	UserAgent  string
	IPAddress  string
}

// ViewTotals are the SQL aggregates over a project's view events.
type ViewTotals struct {
	Events        int
	UniqueViewers int
	Plays         int
	Completes     int
	// AverageWatch is the mean of duration*progress over events that carry both.
	AverageWatch float64
	LastViewed   *time.Time
}

// AddView stores ev. The project must exist.
func (s *Store) AddView(ctx context.Context, ev ViewRecord) error {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO view_events (project_id, event_type, occurred_at, progress, duration, user_agent, ip_address)
         SELECT id, ?, ?, ?, ?, ?, ? FROM projects WHERE id = ?`,
		ev.EventType,
		ev.OccurredAt.UTC().UnixNano(),
		ev.Progress,
		ev.Duration,
		ev.UserAgent,
		ev.IPAddress,
		ev.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("insert view event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "analytics", "record", fmt.Sprintf("project %s", ev.ProjectID), nil)
	}
	return nil
}

// Views returns the project's events newest first. limit <= 0 returns all.
func (s *Store) Views(ctx context.Context, projectID string, limit int) ([]ViewRecord, error) {
	query := `SELECT project_id, event_type, occurred_at, progress, duration, user_agent, ip_address
        FROM view_events WHERE project_id = ? ORDER BY occurred_at DESC, id DESC`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query view events: %w", err)
	}
	defer rows.Close()

	var out []ViewRecord
	for rows.Next() {
		var (
			rec ViewRecord
			at  int64
		)
		if err := rows.Scan(&rec.ProjectID, &rec.EventType, &at, &rec.Progress, &rec.Duration, &rec.UserAgent, &rec.IPAddress); err != nil {
			return nil, fmt.Errorf("scan view event: %w", err)
		}
		rec.OccurredAt = time.Unix(0, at).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ViewTotals aggregates the project's events. Unique viewers count distinct
// address and user agent pairs among play events.
func (s *Store) ViewTotals(ctx context.Context, projectID string, playType, completeType string) (ViewTotals, error) {
	var (
		totals  ViewTotals
		avg     sql.NullFloat64
		lastRaw sql.NullInt64
	)
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT
            COUNT(*),
            COUNT(DISTINCT CASE WHEN event_type = ? THEN ip_address || '|' || user_agent END),
            COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0),
            AVG(CASE WHEN duration > 0 AND progress > 0 THEN duration * progress END),
            MAX(occurred_at)
        FROM view_events WHERE project_id = ?`,
		playType, playType, completeType, projectID,
	).Scan(&totals.Events, &totals.UniqueViewers, &totals.Plays, &totals.Completes, &avg, &lastRaw)
	if err != nil {
		return ViewTotals{}, fmt.Errorf("aggregate view events: %w", err)
	}
	totals.AverageWatch = avg.Float64
	if lastRaw.Valid {
		last := time.Unix(0, lastRaw.Int64).UTC()
		totals.LastViewed = &last
	}
	return totals, nil
}

