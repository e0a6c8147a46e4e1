// Package deps reports which external binaries the pipeline can reach.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"demoforge/internal/config"
)

// Requirement defines an external binary a stage shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured pipeline needs. The edge
// engine is always listed because the voice stage falls back to it.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	engine := strings.ToLower(strings.TrimSpace(cfg.Voice.Engine))
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Video.FFmpegBinary, Description: "Clip rendering and final assembly"},
		{Name: "FFprobe", Command: cfg.Video.FFprobeBinary, Description: "Narration and output inspection"},
		{Name: "Chromium", Command: cfg.Capture.BrowserBinary, Description: "Headless page screenshots", Optional: cfg.Capture.FallbackOnFailure},
		{Name: "Edge TTS", Command: cfg.Voice.EdgeBinary, Description: "Multilingual narration and fallback engine", Optional: engine != "edge"},
	}
	switch engine {
	case "kokoro":
		reqs = append(reqs, Requirement{Name: "Kokoro TTS", Command: cfg.Voice.KokoroBinary, Description: "English narration"})
	case "pocket":
		reqs = append(reqs, Requirement{Name: "Pocket TTS", Command: cfg.Voice.PocketBinary, Description: "Voice-cloned narration"})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Command = resolved
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
