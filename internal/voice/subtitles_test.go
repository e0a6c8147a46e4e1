package voice

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"demoforge/internal/demo"
)

func TestBuildCuesSplitsLongNarration(t *testing.T) {
	long := strings.Repeat("deploy previews land in seconds ", 8)
	clips := []demo.VoiceArtifact{
		{SegmentID: "intro", Text: "Meet Acme.", StartTime: 0, Duration: 2},
		{SegmentID: "scene-1", Text: long, StartTime: 2, Duration: 12},
	}
	cues := BuildCues(clips)
	if len(cues) < 3 {
		t.Fatalf("expected long narration to span several cues, got %d", len(cues))
	}
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Fatalf("cue %d has index %d", i, cue.Index)
		}
		lines := strings.Split(cue.Text, "\n")
		if len(lines) > MaxCueLines {
			t.Fatalf("cue %d has %d lines", cue.Index, len(lines))
		}
		for _, line := range lines {
			if len([]rune(line)) > MaxLineChars {
				t.Fatalf("cue %d line too long: %q", cue.Index, line)
			}
		}
	}
	if cues[0].Start != 0 || cues[0].End != 2 {
		t.Fatalf("unexpected intro timing %+v", cues[0])
	}
	last := cues[len(cues)-1]
	if math.Abs(last.End-14) > 1e-9 {
		t.Fatalf("expected last cue to end at 14s, got %v", last.End)
	}
	if cues[1].Start != 2 {
		t.Fatalf("expected scene cues to start at clip start, got %v", cues[1].Start)
	}
}

func TestWriteSRT(t *testing.T) {
	cues := []demo.SubtitleCue{
		{Index: 1, Start: 0, End: 2.5, Text: "Meet Acme."},
		{Index: 2, Start: 2.5, End: 3661.25, Text: "line one\nline two"},
	}
	var buf bytes.Buffer
	if err := WriteSRT(&buf, cues); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nMeet Acme.\n\n2\n00:00:02,500 --> 01:01:01,250\nline one\nline two\n"
	if buf.String() != want {
		t.Fatalf("unexpected srt:\n%s\nwant:\n%s", buf.String(), want)
	}
}
