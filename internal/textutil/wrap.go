package textutil

import (
	"strings"
	"unicode/utf8"
)

// Wrap breaks text into lines of at most width runes, splitting on
// whitespace. A single word longer than width is hard-split.
func Wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var (
		lines []string
		line  strings.Builder
		n     int
	)
	flush := func() {
		if n > 0 {
			lines = append(lines, line.String())
			line.Reset()
			n = 0
		}
	}
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			flush()
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		wl := utf8.RuneCountInString(word)
		if n > 0 && n+1+wl > width {
			flush()
		}
		if n > 0 {
			line.WriteByte(' ')
			n++
		}
		line.WriteString(word)
		n += wl
	}
	flush()
	return lines
}

// Chunk groups wrapped lines into blocks of at most perBlock lines each.
func Chunk(lines []string, perBlock int) [][]string {
	if perBlock <= 0 {
		perBlock = 1
	}
	var blocks [][]string
	for len(lines) > 0 {
		n := perBlock
		if n > len(lines) {
			n = len(lines)
		}
		blocks = append(blocks, lines[:n])
		lines = lines[n:]
	}
	return blocks
}

// Truncate shortens text to at most limit runes, ending with "..." when cut.
func Truncate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
