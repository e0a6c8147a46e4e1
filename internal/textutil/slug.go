package textutil

import (
	"strings"
	"unicode"
)

// Slug converts value to a lowercase, hyphen-separated token safe for file
// names. Runs of anything other than letters and digits collapse to a single
// hyphen. Returns "untitled" for input with no letters or digits.
func Slug(value string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
