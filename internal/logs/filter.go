package logs

import (
	"encoding/json"
	"strings"

	"demoforge/internal/logging"
	"demoforge/internal/project"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// Filter selects log lines. Zero values match everything.
type Filter struct {
	ProjectID string
	MinLevel  string
}

// Empty reports whether f matches every line.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.ProjectID) == "" && strings.TrimSpace(f.MinLevel) == ""
}

// Match reports whether line passes f. JSON lines are decoded; console lines
// are matched on their level token and [project/stage] subject.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	level, projectID := fields(line)
	if id := strings.TrimSpace(f.ProjectID); id != "" && projectID != id {
		return false
	}
	if floor := strings.ToLower(strings.TrimSpace(f.MinLevel)); floor != "" {
		want, ok := levelRank[floor]
		if !ok {
			return true
		}
		got, ok := levelRank[level]
		return ok && got >= want
	}
	return true
}

func fields(line string) (level, projectID string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var entry map[string]any
		if json.Unmarshal([]byte(trimmed), &entry) == nil {
			level, _ = entry["level"].(string)
			projectID, _ = entry[logging.FieldProjectID].(string)
			return strings.ToLower(level), projectID
		}
	}
	// Console format: "<ts> LEVEL component [id/stage]: msg key=value ..."
	parts := strings.Fields(trimmed)
	if len(parts) > 1 {
		level = strings.ToLower(parts[1])
	}
	for _, part := range parts[min(2, len(parts)):] {
		if !strings.HasPrefix(part, "[") {
			continue
		}
		subject := strings.TrimRight(strings.TrimPrefix(part, "["), "]:")
		id, _, _ := strings.Cut(subject, "/")
		if project.ValidID(id) {
			return level, id
		}
		break
	}
	return level, ""
}
