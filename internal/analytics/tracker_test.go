package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"demoforge/internal/analytics"
	"demoforge/internal/project"
	"demoforge/internal/services"
	"demoforge/internal/testsupport"
)

func newTracker(t *testing.T) (*analytics.Tracker, *project.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return analytics.NewTracker(store, nil), store
}

func TestRecordAndSummarize(t *testing.T) {
	ctx := context.Background()
	tracker, store := newTracker(t)
	projectID := testsupport.NewProject(t, store).ID
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []analytics.ViewEvent{
		{Type: "play", IPAddress: "203.0.113.7", UserAgent: "firefox", Timestamp: base},
		{Type: "heartbeat", Progress: 0.5, Duration: 60, IPAddress: "203.0.113.7", UserAgent: "firefox", Timestamp: base.Add(30 * time.Second)},
		{Type: "complete", Progress: 1, Duration: 60, IPAddress: "203.0.113.7", UserAgent: "firefox", Timestamp: base.Add(time.Minute)},
		{Type: "PLAY", IPAddress: "203.0.113.9", UserAgent: "firefox", Timestamp: base.Add(2 * time.Minute)},
		{Type: "play", IPAddress: "198.51.100.1", UserAgent: "curl", Timestamp: base.Add(3 * time.Minute)},
		{Type: "pause", Progress: 0.25, Duration: 60, IPAddress: "198.51.100.1", UserAgent: "curl", Timestamp: base.Add(4 * time.Minute)},
	}
	for _, ev := range events {
		ev.ProjectID = projectID
		if _, err := tracker.Record(ctx, ev); err != nil {
			t.Fatalf("Record(%s): %v", ev.Type, err)
		}
	}

	s, err := tracker.Summarize(ctx, projectID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.TotalViews != 6 || s.Plays != 3 || s.Completes != 1 {
		t.Fatalf("unexpected counts %+v", s)
	}
	// Both 203.0.113.x viewers share a /24 and user agent, so they collapse.
	if s.UniqueViewers != 2 {
		t.Fatalf("unique viewers = %d, want 2", s.UniqueViewers)
	}
	if s.CompletionRate != 33.33 {
		t.Fatalf("completion rate = %v", s.CompletionRate)
	}
	// (30 + 60 + 15) / 3
	if s.AverageWatchTime != 35 {
		t.Fatalf("average watch time = %v", s.AverageWatchTime)
	}
	if s.LastViewed == nil || !s.LastViewed.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("unexpected last viewed %v", s.LastViewed)
	}

	recent, err := tracker.Events(ctx, projectID, 2)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(recent) != 2 || recent[0].Type != analytics.EventPause || recent[1].Type != analytics.EventPlay {
		t.Fatalf("expected newest first, got %+v", recent)
	}
	if recent[1].IPAddress != "198.51.100.0" {
		t.Fatalf("ip address not anonymized: %q", recent[1].IPAddress)
	}
}

func TestSummarizeWithoutEvents(t *testing.T) {
	tracker, store := newTracker(t)
	projectID := testsupport.NewProject(t, store).ID
	s, err := tracker.Summarize(context.Background(), projectID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.ProjectID != projectID || s.TotalViews != 0 || s.CompletionRate != 0 || s.LastViewed != nil {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestRecordRejectsInvalidEvents(t *testing.T) {
	tracker, store := newTracker(t)
	projectID := testsupport.NewProject(t, store).ID
	tests := []struct {
		name string
		ev   analytics.ViewEvent
		want error
	}{
		{"unknown type", analytics.ViewEvent{ProjectID: projectID, Type: "seek"}, services.ErrValidation},
		{"progress above one", analytics.ViewEvent{ProjectID: projectID, Type: "heartbeat", Progress: 1.5}, services.ErrValidation},
		{"negative duration", analytics.ViewEvent{ProjectID: projectID, Type: "play", Duration: -1}, services.ErrValidation},
		{"malformed id", analytics.ViewEvent{ProjectID: "../../etc", Type: "play"}, services.ErrValidation},
		{"unknown project", analytics.ViewEvent{ProjectID: "ba9876543210", Type: "play"}, services.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tracker.Record(context.Background(), tt.ev); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEventsRemovedWithProject(t *testing.T) {
	ctx := context.Background()
	tracker, store := newTracker(t)
	doomed := testsupport.NewProject(t, store)
	kept := testsupport.NewProject(t, store)
	for _, id := range []string{doomed.ID, kept.ID} {
		if _, err := tracker.Record(ctx, analytics.ViewEvent{ProjectID: id, Type: "play"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if ok, err := store.Delete(ctx, doomed.ID); err != nil || !ok {
		t.Fatalf("Delete: %v, %v", ok, err)
	}
	events, err := tracker.Events(ctx, doomed.ID, 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events survived project deletion: %+v", events)
	}
	s, err := tracker.Summarize(ctx, kept.ID)
	if err != nil || s.Plays != 1 {
		t.Fatalf("other project's events affected: %+v, %v", s, err)
	}
}

func TestAnonymizeIP(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"not-an-ip":                "",
		"192.0.2.55":               "192.0.2.0",
		"192.0.2.55:51234":         "192.0.2.0",
		"::ffff:192.0.2.55":        "192.0.2.0",
		"2001:db8:abcd:12::1":      "2001:db8:abcd::",
		"[2001:db8:abcd:12::1]:80": "2001:db8:abcd::",
	}
	for in, want := range tests {
		if got := analytics.AnonymizeIP(in); got != want {
			t.Fatalf("AnonymizeIP(%q) = %q, want %q", in, got, want)
		}
	}
}
