package api

// CancelOutcome reports what a cancel request did.
type CancelOutcome string

const (
	CancelRequested  CancelOutcome = "cancel_requested"
	CancelNotRunning CancelOutcome = "not_running"
	CancelNotFound   CancelOutcome = "not_found"
)

// CancelResult is the body of POST /api/projects/{id}/cancel.
type CancelResult struct {
	ProjectID string        `json:"projectId"`
	Outcome   CancelOutcome `json:"outcome"`
	Stage     string        `json:"stage,omitempty"`
}
