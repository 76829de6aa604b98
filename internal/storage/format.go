package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// FormatTranscript renders a result as one line per segment:
//
//	[00:01:02 - 00:01:09] Speaker 1: text
//
// Results without segments render their full text.
func FormatTranscript(result *types.TranscriptionResult) string {
	if len(result.Segments) == 0 {
		return result.Text
	}
	var b strings.Builder
	for _, seg := range result.Segments {
		fmt.Fprintf(&b, "[%s - %s] ", clock(seg.Start), clock(seg.End))
		if seg.Speaker != "" {
			b.WriteString(seg.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(seg.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}

// sanitizeFilename reduces name to a safe single path element.
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\'':
			return '_'
		}
		return r
	}, filepath.Base(strings.TrimSpace(name)))
	if result == "" || result == "." {
		result = "transcript"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
