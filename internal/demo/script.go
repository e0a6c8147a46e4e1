package demo

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// SceneType controls how a scene's visual is produced.
type SceneType string

const (
	SceneScreenshot  SceneType = "screenshot"
	SceneTitleCard   SceneType = "title_card"
	SceneCodeSnippet SceneType = "code_snippet"
	SceneDiagram     SceneType = "diagram"
)

// Valid reports whether t is a known scene type.
func (t SceneType) Valid() bool {
	switch t {
	case SceneScreenshot, SceneTitleCard, SceneCodeSnippet, SceneDiagram:
		return true
	}
	return false
}

// Scene is one narrated unit of the script.
type Scene struct {
	ID            string    `json:"id" yaml:"id"`
	Type          SceneType `json:"type" yaml:"type"`
	Narration     string    `json:"narration" yaml:"narration"`
	Duration      float64   `json:"duration" yaml:"duration"`
	URL           string    `json:"url,omitempty" yaml:"url,omitempty"`
	VisualContent string    `json:"visual_content,omitempty" yaml:"visual_content,omitempty"`
}

// NeedsBrowser reports whether the scene is captured from a live page.
func (s Scene) NeedsBrowser() bool {
	return s.Type == SceneScreenshot && strings.TrimSpace(s.URL) != ""
}

// Script is the scripter's output.
type Script struct {
	Title          string    `json:"title" yaml:"title"`
	Audience       Audience  `json:"audience" yaml:"audience"`
	IntroNarration string    `json:"intro_narration" yaml:"intro_narration"`
	Scenes         []Scene   `json:"scenes" yaml:"scenes"`
	OutroNarration string    `json:"outro_narration" yaml:"outro_narration"`
	CallToAction   string    `json:"call_to_action" yaml:"call_to_action"`
	ProjectURL     string    `json:"project_url,omitempty" yaml:"project_url,omitempty"`
	TotalDuration  float64   `json:"total_duration" yaml:"total_duration"`
	GeneratedAt    time.Time `json:"generated_at" yaml:"generated_at"`
}

// Segment IDs for the bookends of a script.
const (
	SegmentIntro = "intro"
	SegmentOutro = "outro"
)

// SegmentKind distinguishes bookends from scenes.
type SegmentKind string

const (
	SegmentKindIntro SegmentKind = "intro"
	SegmentKindScene SegmentKind = "scene"
	SegmentKindOutro SegmentKind = "outro"
)

// Segment is one narrated unit of the final video.
type Segment struct {
	ID        string
	Kind      SegmentKind
	Narration string
	Duration  float64
	Scene     *Scene
}

// Segments returns intro (when narrated), scenes, then outro (when narrated).
func (s *Script) Segments() []Segment {
	if s == nil {
		return nil
	}
	segments := make([]Segment, 0, len(s.Scenes)+2)
	if narration := strings.TrimSpace(s.IntroNarration); narration != "" {
		segments = append(segments, Segment{ID: SegmentIntro, Kind: SegmentKindIntro, Narration: narration, Duration: EstimateSpeechSeconds(narration, DefaultWordsPerMinute)})
	}
	for i := range s.Scenes {
		scene := &s.Scenes[i]
		segments = append(segments, Segment{ID: scene.ID, Kind: SegmentKindScene, Narration: strings.TrimSpace(scene.Narration), Duration: scene.Duration, Scene: scene})
	}
	if narration := strings.TrimSpace(s.OutroNarration); narration != "" {
		segments = append(segments, Segment{ID: SegmentOutro, Kind: SegmentKindOutro, Narration: narration, Duration: EstimateSpeechSeconds(narration, DefaultWordsPerMinute)})
	}
	return segments
}

// SceneDurationSum returns the sum of scene durations.
func (s *Script) SceneDurationSum() float64 {
	if s == nil {
		return 0
	}
	total := 0.0
	for _, scene := range s.Scenes {
		total += scene.Duration
	}
	return total
}

// Normalize assigns missing scene IDs and fills unknown scene types.
func (s *Script) Normalize() {
	if s == nil {
		return
	}
	seen := make(map[string]bool, len(s.Scenes))
	for i := range s.Scenes {
		scene := &s.Scenes[i]
		scene.ID = strings.TrimSpace(scene.ID)
		if scene.ID == "" || seen[scene.ID] || scene.ID == SegmentIntro || scene.ID == SegmentOutro {
			scene.ID = fmt.Sprintf("scene_%d", i+1)
		}
		seen[scene.ID] = true
		scene.Type = SceneType(strings.ToLower(strings.TrimSpace(string(scene.Type))))
		if !scene.Type.Valid() {
			if strings.TrimSpace(scene.URL) != "" {
				scene.Type = SceneScreenshot
			} else {
				scene.Type = SceneTitleCard
			}
		}
		scene.URL = strings.TrimSpace(scene.URL)
	}
	s.TotalDuration = s.SceneDurationSum()
}

// ErrEmptyScript is returned when a script has no scenes.
var ErrEmptyScript = errors.New("script has no scenes")

// Validate checks structural invariants. Duration tolerance is checked by
// WithinTolerance since it depends on the requested target.
func (s *Script) Validate() error {
	if s == nil || len(s.Scenes) == 0 {
		return ErrEmptyScript
	}
	for i, scene := range s.Scenes {
		if strings.TrimSpace(scene.Narration) == "" {
			return fmt.Errorf("scene %d (%s) has no narration", i+1, scene.ID)
		}
		if scene.Duration <= 0 || math.IsNaN(scene.Duration) || math.IsInf(scene.Duration, 0) {
			return fmt.Errorf("scene %d (%s) has non-positive duration", i+1, scene.ID)
		}
		if scene.Type == SceneScreenshot && scene.URL == "" {
			return fmt.Errorf("screenshot scene %d (%s) has no url", i+1, scene.ID)
		}
	}
	return nil
}

// WithinTolerance reports whether the scene duration sum is within tolerance
// (a fraction, e.g. 0.1) of target seconds.
func (s *Script) WithinTolerance(target, tolerance float64) bool {
	if target <= 0 {
		return true
	}
	sum := s.SceneDurationSum()
	return math.Abs(sum-target) <= target*tolerance+1e-6
}
