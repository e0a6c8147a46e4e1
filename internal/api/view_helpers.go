package api

import (
	"cmp"
	"slices"
	"time"
)

// SortProjectsNewestFirst orders projects by CreatedAt descending, breaking
// ties by ID.
func SortProjectsNewestFirst(projects []Project) []Project {
	if len(projects) == 0 {
		return nil
	}
	sorted := slices.Clone(projects)
	slices.SortStableFunc(sorted, func(a, b Project) int {
		ta, tb := parseTime(a.CreatedAt), parseTime(b.CreatedAt)
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseTime exposes API timestamp parsing for consumers that need display
// formatting.
func ParseTime(value string) time.Time {
	return parseTime(value)
}
