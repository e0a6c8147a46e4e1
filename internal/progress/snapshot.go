package progress

import "time"

// Terminal stage names. They mirror project.StageComplete and project.StageFailed.
const (
	StageComplete = "complete"
	StageFailed   = "failed"
)

// Snapshot is one point-in-time view of a project's pipeline run.
type Snapshot struct {
	ProjectID string    `json:"project_id"`
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage"`
	Fraction  float64   `json:"fraction"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Current   int       `json:"current,omitempty"`
	Total     int       `json:"total,omitempty"`
	CacheHit  bool      `json:"cache_hit,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Sequence  uint64    `json:"seq"`
}

// Terminal reports whether no further snapshots follow for this run.
func (s Snapshot) Terminal() bool {
	return s.Stage == StageComplete || s.Stage == StageFailed
}

// Percent returns Fraction scaled to 0..100.
func (s Snapshot) Percent() float64 {
	return clampFraction(s.Fraction) * 100
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
