// Package mock provides test doubles for the transcription package
// interfaces.
//
// Transcriber and Embedder record every call. Set the static Result,
// Embedding and Err fields for simple cases, or the Func hooks when the
// answer depends on the audio.
//
// Example:
//
//	asr := &mock.Transcriber{Result: &types.Recognition{Text: "hello"}}
//	emb := &mock.Embedder{Embedding: []float32{1, 0, 0}}
package mock

import (
	"context"
	"sync"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// Call records a single invocation of Transcribe or Embed.
type Call struct {
	// PCM is a copy of the audio passed to the call.
	PCM []byte
	// SampleRate is the sample rate passed to the call.
	SampleRate int
}

// Transcriber is a mock implementation of transcription.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFunc is nil. A nil
	// Result yields an empty Recognition.
	Result *types.Recognition

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFunc, if set, computes the result from the call arguments.
	TranscribeFunc func(pcm []byte, sampleRate int) (*types.Recognition, error)

	// Calls records every call to Transcribe.
	Calls []Call
}

// Transcribe records the call and returns the configured response.
func (t *Transcriber) Transcribe(_ context.Context, pcm []byte, sampleRate int) (*types.Recognition, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, Call{PCM: append([]byte(nil), pcm...), SampleRate: sampleRate})
	fn, res, err := t.TranscribeFunc, t.Result, t.Err
	t.mu.Unlock()

	if fn != nil {
		return fn(pcm, sampleRate)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &types.Recognition{}, nil
	}
	out := *res
	return &out, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Embedder is a mock implementation of transcription.Embedder.
type Embedder struct {
	mu sync.Mutex

	// Embedding is returned by Embed when EmbedFunc is nil. An empty
	// Embedding yields transcription.ErrNoEmbedding.
	Embedding []float32

	// Err, if non-nil, is returned as the error from Embed.
	Err error

	// EmbedFunc, if set, computes the embedding from the call arguments.
	EmbedFunc func(pcm []byte, sampleRate int) ([]float32, error)

	// Calls records every call to Embed.
	Calls []Call
}

// Embed records the call and returns the configured response.
func (e *Embedder) Embed(_ context.Context, pcm []byte, sampleRate int) ([]float32, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, Call{PCM: append([]byte(nil), pcm...), SampleRate: sampleRate})
	fn, emb, err := e.EmbedFunc, e.Embedding, e.Err
	e.mu.Unlock()

	if fn != nil {
		return fn(pcm, sampleRate)
	}
	if err != nil {
		return nil, err
	}
	if len(emb) == 0 {
		return nil, transcription.ErrNoEmbedding
	}
	return append([]float32(nil), emb...), nil
}

// CallCount returns the number of Embed calls. Thread-safe.
func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

var (
	_ transcription.Transcriber = (*Transcriber)(nil)
	_ transcription.Embedder    = (*Embedder)(nil)
)
