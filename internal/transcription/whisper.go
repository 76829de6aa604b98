package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// Compile-time assertion that WhisperClient implements Transcriber.
var _ Transcriber = (*WhisperClient)(nil)

// WhisperClient talks to a whisper-server compatible POST /inference endpoint.
type WhisperClient struct {
	*client
}

// NewWhisperClient creates an ASR adapter for the server at serverURL
// (e.g. "http://localhost:8178").
func NewWhisperClient(serverURL string, opts ...Option) (*WhisperClient, error) {
	c, err := newClient(serverURL, opts)
	if err != nil {
		return nil, err
	}
	return &WhisperClient{client: c}, nil
}

// Transcribe sends pcm for recognition. Empty input returns an empty result
// without a network round trip.
func (wc *WhisperClient) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (*types.Recognition, error) {
	if len(pcm) == 0 {
		return &types.Recognition{}, nil
	}

	fields := map[string]string{
		"temperature":     "0.0",
		"temperature_inc": "0.2",
		"response_format": "json",
		"diarize":         "false",
	}
	if wc.language != "" {
		fields["language"] = wc.language
	}

	status, data, err := wc.postWAV(ctx, "/inference", pcm, sampleRate, fields)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", status)
	}

	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	segments := make([]types.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, types.Segment{Start: seg.Start, End: seg.End, Text: text})
	}

	return &types.Recognition{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: segments,
	}, nil
}

// WhisperOutput matches the server's JSON response
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from the server
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
