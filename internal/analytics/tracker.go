// Package analytics records playback events for finished demo videos and
// summarizes them per project.
//
// Events live in the project database next to the project they describe and
// are removed with it.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/netip"
	"strings"
	"time"

	"demoforge/internal/logging"
	"demoforge/internal/project"
	"demoforge/internal/services"
)

// EventType is a player event reported by the video page.
type EventType string

const (
	EventPlay      EventType = "play"
	EventPause     EventType = "pause"
	EventComplete  EventType = "complete"
	EventHeartbeat EventType = "heartbeat"
)

// ParseEventType validates a player event name.
func ParseEventType(value string) (EventType, error) {
	switch t := EventType(strings.ToLower(strings.TrimSpace(value))); t {
	case EventPlay, EventPause, EventComplete, EventHeartbeat:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q (use play, pause, complete, or heartbeat)", value)
	}
}

// ViewEvent is one recorded player event.
type ViewEvent struct {
	ProjectID string    `json:"project_id"`
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Progress  float64   `json:"progress"`
	Duration  float64   `json:"duration,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// Summary aggregates a project's events.
type Summary struct {
	ProjectID        string     `json:"project_id"`
	TotalViews       int        `json:"total_views"`
	UniqueViewers    int        `json:"unique_viewers"`
	Plays            int        `json:"plays"`
	Completes        int        `json:"completes"`
	CompletionRate   float64    `json:"completion_rate"`
	AverageWatchTime float64    `json:"average_watch_time"`
	LastViewed       *time.Time `json:"last_viewed,omitempty"`
}

// Tracker validates player events and stores them in the project database.
type Tracker struct {
	store  *project.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker records events through store.
func NewTracker(store *project.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		store:  store,
		logger: logging.NewComponentLogger(logger, "analytics"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record validates and stores ev. The timestamp defaults to now and the IP
// address is truncated to its network prefix before it is stored. Events for
// unknown projects return ErrNotFound.
func (t *Tracker) Record(ctx context.Context, ev ViewEvent) (ViewEvent, error) {
	var err error
	if !project.ValidID(ev.ProjectID) {
		return ev, invalid(fmt.Sprintf("invalid project id %q", ev.ProjectID))
	}
	if ev.Type, err = ParseEventType(string(ev.Type)); err != nil {
		return ev, invalid(err.Error())
	}
	if ev.Progress < 0 || ev.Progress > 1 || math.IsNaN(ev.Progress) {
		return ev, invalid("progress must be between 0 and 1")
	}
	if ev.Duration < 0 || math.IsNaN(ev.Duration) {
		return ev, invalid("duration must not be negative")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.IPAddress = AnonymizeIP(ev.IPAddress)
	ev.UserAgent = strings.TrimSpace(ev.UserAgent)

	if err := t.store.AddView(ctx, project.ViewRecord{
		ProjectID:  ev.ProjectID,
		EventType:  string(ev.Type),
		OccurredAt: ev.Timestamp,
		Progress:   ev.Progress,
		Duration:   ev.Duration,
		UserAgent:  ev.UserAgent,
		IPAddress:  ev.IPAddress,
	}); err != nil {
		return ev, err
	}
	logging.WithContext(services.WithProjectID(ctx, ev.ProjectID), t.logger).Debug("view event recorded",
		logging.String("event", string(ev.Type)),
		logging.Float64("progress", ev.Progress),
	)
	return ev, nil
}

// Events returns a project's events, most recent first. A limit of zero
// returns all of them.
func (t *Tracker) Events(ctx context.Context, projectID string, limit int) ([]ViewEvent, error) {
	records, err := t.store.Views(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}
	events := make([]ViewEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, ViewEvent{
			ProjectID: rec.ProjectID,
			Type:      EventType(rec.EventType),
			Timestamp: rec.OccurredAt,
			Progress:  rec.Progress,
			Duration:  rec.Duration,
			UserAgent: rec.UserAgent,
			IPAddress: rec.IPAddress,
		})
	}
	return events, nil
}

// Summarize aggregates the project's events. A project with no events
// returns a zero summary.
func (t *Tracker) Summarize(ctx context.Context, projectID string) (Summary, error) {
	totals, err := t.store.ViewTotals(ctx, projectID, string(EventPlay), string(EventComplete))
	if err != nil {
		return Summary{ProjectID: projectID}, err
	}
	s := Summary{
		ProjectID:        projectID,
		TotalViews:       totals.Events,
		UniqueViewers:    totals.UniqueViewers,
		Plays:            totals.Plays,
		Completes:        totals.Completes,
		AverageWatchTime: round2(totals.AverageWatch),
		LastViewed:       totals.LastViewed,
	}
	if s.Plays > 0 {
		s.CompletionRate = round2(float64(s.Completes) / float64(s.Plays) * 100)
	}
	return s, nil
}

// AnonymizeIP keeps the /24 of an IPv4 address or the /48 of an IPv6
// address. Values that do not parse are dropped.
func AnonymizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		raw = ap.Addr().String()
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return ""
	}
	addr = addr.Unmap().WithZone("")
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.Addr().String()
}

func invalid(msg string) error {
	return services.Wrap(services.ErrValidation, "analytics", "record", msg, nil)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
