package speaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription/mock"
)

func TestIdentifier_ShortAudioNeverEmbeds(t *testing.T) {
	emb := &mock.Embedder{Embedding: []float32{1, 0}}
	id := NewIdentifier(emb, NewRegistry(DefaultConfig()), audio.SampleRate)

	// 4000 samples is 0.25s, below the 0.5s minimum.
	pcm := make([]byte, 4000*audio.BytesPerSample)
	m, ok, err := id.Identify(context.Background(), pcm, t0)
	if err != nil || ok {
		t.Fatalf("Identify = %+v, %v, %v; want no identity", m, ok, err)
	}
	if emb.CallCount() != 0 {
		t.Errorf("embedder called %d times", emb.CallCount())
	}
	if id.Registry().Len() != 0 {
		t.Errorf("registry grew to %d", id.Registry().Len())
	}
}

func TestIdentifier_Identify(t *testing.T) {
	emb := &mock.Embedder{Embedding: []float32{0, 1}}
	id := NewIdentifier(emb, NewRegistry(DefaultConfig()), audio.SampleRate)

	pcm := audio.Tone(220, 0.5, time.Second, audio.SampleRate)
	m, ok, err := id.Identify(context.Background(), pcm, t0)
	if err != nil || !ok {
		t.Fatalf("Identify: ok=%v err=%v", ok, err)
	}
	if m.ID != 0 || m.Label() != "SPEAKER_00" {
		t.Errorf("match = %+v", m)
	}
	if got := emb.Calls[0].SampleRate; got != audio.SampleRate {
		t.Errorf("sample rate = %d", got)
	}
}

func TestIdentifier_NoEmbedding(t *testing.T) {
	emb := &mock.Embedder{}
	id := NewIdentifier(emb, NewRegistry(DefaultConfig()), audio.SampleRate)
	_, ok, err := id.Identify(context.Background(), audio.Tone(220, 0.5, time.Second, audio.SampleRate), t0)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want no identity without error", ok, err)
	}
}

func TestIdentifier_AdapterFailure(t *testing.T) {
	boom := errors.New("sidecar down")
	emb := &mock.Embedder{Err: boom}
	id := NewIdentifier(emb, NewRegistry(DefaultConfig()), audio.SampleRate)
	_, ok, err := id.Identify(context.Background(), audio.Tone(220, 0.5, time.Second, audio.SampleRate), t0)
	if ok || !errors.Is(err, boom) {
		t.Fatalf("ok=%v err=%v, want wrapped adapter error", ok, err)
	}
	if errors.Is(err, transcription.ErrNoEmbedding) {
		t.Fatal("adapter failure reported as no embedding")
	}
}
