package demo

import (
	"fmt"
	"os"
	"time"
)

// CaptureKind records how a visual was produced.
type CaptureKind string

const (
	CaptureScreenshot CaptureKind = "screenshot"
	CaptureCard       CaptureKind = "card"
	CaptureFallback   CaptureKind = "fallback"
)

// CaptureArtifact is one visual asset on disk.
type CaptureArtifact struct {
	SegmentID string      `json:"segment_id"`
	Path      string      `json:"path"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Kind      CaptureKind `json:"kind"`
	SourceURL string      `json:"source_url,omitempty"`
}

// CaptureFailure records a scene whose capture kept failing.
type CaptureFailure struct {
	SegmentID string `json:"segment_id"`
	URL       string `json:"url,omitempty"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error"`
}

// CaptureSet is the capturer's output keyed by segment ID.
type CaptureSet struct {
	Artifacts map[string]CaptureArtifact `json:"artifacts"`
	Failures  []CaptureFailure           `json:"failures,omitempty"`
}

// Artifact returns the visual for a segment.
func (c *CaptureSet) Artifact(segmentID string) (CaptureArtifact, bool) {
	if c == nil || c.Artifacts == nil {
		return CaptureArtifact{}, false
	}
	a, ok := c.Artifacts[segmentID]
	return a, ok
}

// VoiceSettings selects the TTS engine and voice for a project.
type VoiceSettings struct {
	Engine     string  `json:"engine"`
	Voice      string  `json:"voice,omitempty"`
	Language   string  `json:"language"`
	Gender     string  `json:"gender,omitempty"`
	Speed      float64 `json:"speed"`
	SamplePath string  `json:"sample_path,omitempty"`
}

// VoiceArtifact is one narration clip.
type VoiceArtifact struct {
	SegmentID string  `json:"segment_id"`
	Path      string  `json:"path"`
	Text      string  `json:"text"`
	Duration  float64 `json:"duration"`
	StartTime float64 `json:"start_time"`
	Engine    string  `json:"engine"`
	Voice     string  `json:"voice"`
}

// SubtitleCue is one SRT entry. Times are seconds from video start.
type SubtitleCue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// VoiceSet is the voicer's output keyed by segment ID.
type VoiceSet struct {
	Artifacts     map[string]VoiceArtifact `json:"artifacts"`
	Cues          []SubtitleCue            `json:"cues"`
	SubtitlePath  string                   `json:"subtitle_path,omitempty"`
	TotalDuration float64                  `json:"total_duration"`
	Engine        string                   `json:"engine"`
	Language      string                   `json:"language"`
}

// Artifact returns the narration clip for a segment.
func (v *VoiceSet) Artifact(segmentID string) (VoiceArtifact, bool) {
	if v == nil || v.Artifacts == nil {
		return VoiceArtifact{}, false
	}
	a, ok := v.Artifacts[segmentID]
	return a, ok
}

// Video is the assembler's output.
type Video struct {
	Path         string    `json:"path"`
	Duration     float64   `json:"duration"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeBytes    int64     `json:"size_bytes"`
	SubtitlePath string    `json:"subtitle_path,omitempty"`
	ArchivePath  string    `json:"archive_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerifyFiles checks that every path exists and is non-empty.
func VerifyFiles(paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", path, err)
		}
		if info.IsDir() || info.Size() == 0 {
			return fmt.Errorf("artifact %s is empty", path)
		}
	}
	return nil
}
