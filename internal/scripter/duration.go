package scripter

import (
	"fmt"
	"math"

	"demoforge/internal/demo"
	"demoforge/internal/textutil"
)

// Enforcer keeps narration length and scene timing close to a target.
type Enforcer struct {
	Target         float64
	WordsPerMinute int
	Tolerance      float64
	MinScene       float64
}

// NewEnforcer returns an enforcer for targetSeconds. Zero values fall back to
// 150 wpm, 10% tolerance and 3 second scenes.
func NewEnforcer(targetSeconds, wpm int, tolerance, minScene float64) Enforcer {
	if wpm <= 0 {
		wpm = demo.DefaultWordsPerMinute
	}
	if tolerance <= 0 || tolerance >= 1 {
		tolerance = 0.1
	}
	if minScene <= 0 {
		minScene = 3
	}
	return Enforcer{Target: float64(targetSeconds), WordsPerMinute: wpm, Tolerance: tolerance, MinScene: minScene}
}

// TargetWords is the narration word budget for the target length.
func (e Enforcer) TargetWords() int {
	return int(e.Target / 60 * float64(e.WordsPerMinute))
}

// MinWords is the lowest acceptable word count.
func (e Enforcer) MinWords() int {
	return int(float64(e.TargetWords()) * (1 - e.Tolerance))
}

// MaxWords is the highest acceptable word count.
func (e Enforcer) MaxWords() int {
	return int(float64(e.TargetWords()) * (1 + e.Tolerance))
}

// NarrationWords counts every narrated word in the script.
func NarrationWords(s *demo.Script) float64 {
	if s == nil {
		return 0
	}
	total := demo.CountWords(s.IntroNarration) + demo.CountWords(s.OutroNarration)
	for _, scene := range s.Scenes {
		total += demo.CountWords(scene.Narration)
	}
	return total
}

// WordsWithin reports whether words fits the budget.
func (e Enforcer) WordsWithin(words float64) bool {
	return words >= float64(e.MinWords()) && words <= float64(e.MaxWords())
}

// Adjustment describes how far words is from the budget.
func (e Enforcer) Adjustment(words float64) string {
	switch {
	case words < float64(e.MinWords()):
		return fmt.Sprintf("The script is too short. Add approximately %d more words.", e.MinWords()-int(words))
	case words > float64(e.MaxWords()):
		return fmt.Sprintf("The script is too long. Remove approximately %d words.", int(words)-e.MaxWords())
	default:
		return "The script length is within the target."
	}
}

// Fit rescales scene durations so they sum to the target. Each scene is
// weighted by the larger of its declared duration and its estimated speech
// time, and no scene drops below MinScene unless the target is too short to
// give every scene that much.
func (e Enforcer) Fit(s *demo.Script) {
	if s == nil || len(s.Scenes) == 0 {
		return
	}
	if e.Target <= 0 {
		s.TotalDuration = s.SceneDurationSum()
		return
	}
	n := len(s.Scenes)
	weights := make([]float64, n)
	for i, scene := range s.Scenes {
		w := math.Max(scene.Duration, demo.EstimateSpeechSeconds(scene.Narration, e.WordsPerMinute))
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			w = e.MinScene
		}
		weights[i] = w
	}

	floor := e.MinScene
	if floor*float64(n) > e.Target {
		floor = e.Target / float64(n)
	}

	durations := make([]float64, n)
	pinned := make([]bool, n)
	for range n {
		remaining := e.Target
		free := 0.0
		for i := range weights {
			if pinned[i] {
				remaining -= floor
			} else {
				free += weights[i]
			}
		}
		changed := false
		for i := range weights {
			if pinned[i] {
				durations[i] = floor
				continue
			}
			durations[i] = weights[i] / free * remaining
			if durations[i] < floor {
				pinned[i] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	total := 0.0
	largest := 0
	for i := range durations {
		durations[i] = math.Round(durations[i]*10) / 10
		total += durations[i]
		if durations[i] > durations[largest] {
			largest = i
		}
	}
	durations[largest] = math.Round((durations[largest]+e.Target-total)*10) / 10
	for i := range s.Scenes {
		s.Scenes[i].Duration = durations[i]
	}
	s.TotalDuration = s.SceneDurationSum()
}

// duplicateThreshold is the narration similarity above which a scene is
// treated as a repeat of an earlier one.
const duplicateThreshold = 0.9

// dropDuplicateScenes removes scenes whose narration repeats an earlier
// scene. It returns the number of scenes removed.
func dropDuplicateScenes(s *demo.Script) int {
	if s == nil || len(s.Scenes) < 2 {
		return 0
	}
	kept := s.Scenes[:0]
	vectors := make([]*textutil.TermVector, 0, len(s.Scenes))
	removed := 0
scenes:
	for _, scene := range s.Scenes {
		v := textutil.NewTermVector(scene.Narration)
		for _, prev := range vectors {
			if v.Len() >= 4 && textutil.Similarity(v, prev) >= duplicateThreshold {
				removed++
				continue scenes
			}
		}
		vectors = append(vectors, v)
		kept = append(kept, scene)
	}
	s.Scenes = kept
	return removed
}
