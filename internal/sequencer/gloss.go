package sequencer

import (
	"strings"
	"unicode"
)

// GlossFromText turns free text into a word-by-word gloss: each
// whitespace-separated word, stripped of surrounding punctuation and
// upper-cased, becomes one gesture token. It does no reordering; callers
// that have a real translation should send glosses directly.
func GlossFromText(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if w != "" {
			out = append(out, strings.ToUpper(w))
		}
	}
	return out
}
