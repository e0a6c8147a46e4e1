package textutil

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Deploy", "acme-deploy"},
		{"  acme/demo.git ", "acme-demo-git"},
		{"Ünïcode Größe!", "ünïcode-größe"},
		{"---", "untitled"},
		{"", "untitled"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrapRespectsWidth(t *testing.T) {
	text := "Acme builds a preview environment for every pull request so reviewers can click around before merging anything at all"
	lines := Wrap(text, 42)
	if len(lines) < 3 {
		t.Fatalf("expected several lines, got %v", lines)
	}
	for _, line := range lines {
		if utf8.RuneCountInString(line) > 42 {
			t.Fatalf("line too long (%d): %q", utf8.RuneCountInString(line), line)
		}
	}
	if strings.Join(lines, " ") != text {
		t.Fatalf("wrap lost words: %v", lines)
	}
}

func TestWrapHardSplitsLongWords(t *testing.T) {
	lines := Wrap("supercalifragilistic", 8)
	if len(lines) != 3 || lines[0] != "supercal" || lines[2] != "stic" {
		t.Fatalf("unexpected split %v", lines)
	}
	if Wrap("   ", 10) != nil {
		t.Fatal("expected nil for blank text")
	}
}

func TestChunk(t *testing.T) {
	blocks := Chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(blocks) != 3 || len(blocks[2]) != 1 || blocks[1][0] != "c" {
		t.Fatalf("unexpected blocks %v", blocks)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "preview environments for every branch", "preview environments for every branch", 1, 1},
		{"disjoint", "apple banana cherry", "dog elephant frog", 0, 0},
		{"partial", "the quick brown fox", "the slow brown cat", 0.01, 0.99},
		{"empty", "", "anything here", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(NewTermVector(tt.a), NewTermVector(tt.b))
			if got < tt.min-1e-9 || got > tt.max+1e-9 {
				t.Fatalf("Similarity = %v, want [%v, %v]", got, tt.min, tt.max)
			}
			rev := Similarity(NewTermVector(tt.b), NewTermVector(tt.a))
			if math.Abs(got-rev) > 1e-12 {
				t.Fatalf("not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	got := Tokenize("Go is a fast, tiny language")
	want := []string{"fast", "tiny", "language"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{5 * 1024 * 1024, "5.00 MiB"},
		{3 << 30, "3.00 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"a  spaced\nline", 20, "a spaced line"},
		{"abcdefghij", 8, "abcde..."},
		{"héllo wörld", 7, "héll..."},
		{"abcdef", 2, "ab"},
		{"abcdef", 0, "abcdef"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
