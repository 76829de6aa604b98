package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/observe"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/vad"
)

var epoch = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

const chunkDur = 100 * time.Millisecond

func voice() []byte   { return audio.Tone(440, 0.3, chunkDur, audio.SampleRate) }
func silence() []byte { return audio.Silence(chunkDur, audio.SampleRate) }

// phraseLog records every phrase handed to it.
type phraseLog struct {
	mu      sync.Mutex
	phrases []Phrase
	err     error
}

func (l *phraseLog) HandlePhrase(_ context.Context, _ string, p Phrase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phrases = append(l.phrases, p)
	return l.err
}

func (l *phraseLog) all() []Phrase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Phrase(nil), l.phrases...)
}

// newInlineSession returns a session that processes phrases synchronously.
func newInlineSession(cfg vad.Config, h PhraseHandler) *Session {
	s := NewSession(context.Background(), "meeting-1", cfg, h, epoch)
	s.spawn = func(f func()) { f() }
	return s
}

// feedN feeds n copies of chunk and returns the non-None trigger reasons.
func feedN(s *Session, n int, chunk []byte) []vad.Reason {
	var out []vad.Reason
	for i := 0; i < n; i++ {
		if r := s.Feed(chunk); r != vad.None {
			out = append(out, r)
		}
	}
	return out
}

// eventLog is a broadcast.Publisher that records events.
type eventLog struct {
	mu     sync.Mutex
	events []types.Event
}

func (l *eventLog) Publish(_ string, ev types.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Event(nil), l.events...)
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}
