package voice

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"demoforge/internal/demo"
	"demoforge/internal/textutil"
)

// Subtitle layout limits.
const (
	MaxLineChars = 42
	MaxCueLines  = 2
)

// BuildCues splits each clip's narration into cues of at most MaxCueLines
// lines. A clip's time is divided evenly between its cues.
func BuildCues(clips []demo.VoiceArtifact) []demo.SubtitleCue {
	var cues []demo.SubtitleCue
	for _, clip := range clips {
		blocks := textutil.Chunk(textutil.Wrap(clip.Text, MaxLineChars), MaxCueLines)
		if len(blocks) == 0 || clip.Duration <= 0 {
			continue
		}
		step := clip.Duration / float64(len(blocks))
		for i, block := range blocks {
			start := clip.StartTime + float64(i)*step
			cues = append(cues, demo.SubtitleCue{
				Index: len(cues) + 1,
				Start: start,
				End:   start + step,
				Text:  strings.Join(block, "\n"),
			})
		}
	}
	return cues
}

// WriteSRT renders cues in SubRip format.
func WriteSRT(w io.Writer, cues []demo.SubtitleCue) error {
	bw := bufio.NewWriter(w)
	for i, cue := range cues {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", cue.Index, srtTimestamp(cue.Start), srtTimestamp(cue.End), cue.Text)
	}
	return bw.Flush()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}
