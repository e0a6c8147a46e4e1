package demo

import (
	"strings"
	"unicode"
)

// DefaultWordsPerMinute is the narration pace assumed for duration estimates.
const DefaultWordsPerMinute = 150

// CountWords counts narration words. CJK text has no spaces, so each Han,
// Hiragana, Katakana, or Hangul rune counts as half a word.
func CountWords(text string) float64 {
	words := 0.0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			words += 0.5
			inWord = false
		case r == '\'' || r == '’':
			// contractions stay one word
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}
	return words
}

// EstimateSpeechSeconds estimates how long text takes to read aloud at wpm.
func EstimateSpeechSeconds(text string, wpm int) float64 {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	words := CountWords(strings.TrimSpace(text))
	if words == 0 {
		return 0
	}
	return words / float64(wpm) * 60
}
