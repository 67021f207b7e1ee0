package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitSentences breaks text after '.', '?' or '!' when whitespace follows.
// The whitespace run is consumed; pieces are trimmed and empty ones dropped.
// Abbreviations and decimals such as "e.g. " are split as well.
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	emit := func(piece string) {
		if s := strings.TrimSpace(piece); s != "" {
			out = append(out, s)
		}
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if (r == '.' || r == '?' || r == '!') && i+size < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if unicode.IsSpace(next) {
				emit(text[start : i+size])
				j := i + size
				for j < len(text) {
					ws, wsize := utf8.DecodeRuneInString(text[j:])
					if !unicode.IsSpace(ws) {
						break
					}
					j += wsize
				}
				start = j
				i = j
				continue
			}
		}
		i += size
	}
	emit(text[start:])
	return out
}
