package logs_test

import (
	"testing"

	"demoforge/internal/logs"
)

func TestFilterMatch(t *testing.T) {
	const id = "0123456789ab"
	jsonInfo := `{"ts":"2026-01-02T03:04:05Z","level":"info","msg":"stage complete","project_id":"0123456789ab","stage":"voicing"}`
	jsonDebug := `{"ts":"2026-01-02T03:04:05Z","level":"debug","msg":"cache lookup"}`
	consoleWarn := "2026-01-02T03:04:05Z WARN pipeline [0123456789ab/capturing]: scene capture failed segment_id=scene-2"
	consoleOther := "2026-01-02T03:04:05Z INFO pipeline [ffffffffffff]: run accepted"
	consoleStage := "2026-01-02T03:04:05Z ERROR [analyzing] analysis failed"

	tests := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty matches anything", logs.Filter{}, "not a log line", true},
		{"json project", logs.Filter{ProjectID: id}, jsonInfo, true},
		{"json other project", logs.Filter{ProjectID: id}, jsonDebug, false},
		{"json level floor", logs.Filter{MinLevel: "info"}, jsonDebug, false},
		{"console project and stage", logs.Filter{ProjectID: id}, consoleWarn, true},
		{"console other project", logs.Filter{ProjectID: id}, consoleOther, false},
		{"console stage only subject", logs.Filter{ProjectID: id}, consoleStage, false},
		{"console level floor", logs.Filter{MinLevel: "warn"}, consoleWarn, true},
		{"console below floor", logs.Filter{MinLevel: "warn"}, consoleOther, false},
		{"combined", logs.Filter{ProjectID: id, MinLevel: "error"}, consoleWarn, false},
		{"unknown floor ignored", logs.Filter{MinLevel: "loud"}, jsonDebug, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.line); got != tt.want {
				t.Fatalf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}
