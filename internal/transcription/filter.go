package transcription

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFillers is the filler vocabulary dropped from live transcripts.
var DefaultFillers = []string{
	"Ừ", "À", "ẬM", "Ờ", "UM", "UH", "AH", "OH", "A", "O", "HỬ", "Ử",
	"HỬ HỬ", "Ử Ử", "ỬA", "ỬM",
}

// FillerFilter rejects recognitions that carry no content: filler words,
// stray single characters and stuttered repeats like "aaaa".
type FillerFilter struct {
	words map[string]struct{}
}

// NewFillerFilter builds a filter over words. Matching is case-insensitive
// on the trimmed text.
func NewFillerFilter(words []string) *FillerFilter {
	f := &FillerFilter{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			f.words[w] = struct{}{}
		}
	}
	return f
}

// IsFiller reports whether text should be discarded.
func (f *FillerFilter) IsFiller(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	if _, ok := f.words[strings.ToUpper(t)]; ok {
		return true
	}

	n := utf8.RuneCountInString(t)
	if n < 2 && !isDigits(t) {
		return true
	}
	if n > 3 && singleRune(t) {
		return true
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func singleRune(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if unicode.ToLower(r) != unicode.ToLower(first) {
			return false
		}
	}
	return true
}
