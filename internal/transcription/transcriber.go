// Package transcription holds the adapters for the acoustic models this
// service consumes: a whisper-server compatible ASR endpoint and a speaker
// embedding sidecar. Both are reached over HTTP with audio posted as WAV.
//
// Both clients are safe for concurrent use. If the engine behind them is not
// reentrant, WithMaxConcurrent serialises calls behind a semaphore.
package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// Transcriber turns mono PCM16 audio into text. Implementations must return
// an empty Recognition rather than an error when there is no speech.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (*types.Recognition, error)
}

// Embedder turns mono PCM16 audio into a speaker embedding. It returns
// ErrNoEmbedding when the input is judged insufficient.
type Embedder interface {
	Embed(ctx context.Context, pcm []byte, sampleRate int) ([]float32, error)
}

// ErrNoEmbedding distinguishes "input too weak to embed" from adapter failure.
var ErrNoEmbedding = errors.New("transcription: no embedding for input")

const defaultTimeout = 60 * time.Second

// Option configures an HTTP adapter.
type Option func(*client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 60s.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.httpClient.Timeout = d }
}

// WithMaxConcurrent caps in-flight requests. Zero or negative means no cap.
func WithMaxConcurrent(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		} else {
			c.sem = nil
		}
	}
}

// WithLanguage sets the recognition language hint sent to the ASR server.
func WithLanguage(lang string) Option {
	return func(c *client) { c.language = lang }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// client is the shared multipart-WAV transport of both adapters.
type client struct {
	serverURL  string
	language   string
	httpClient *http.Client
	sem        *semaphore.Weighted
}

func newClient(serverURL string, opts []Option) (*client, error) {
	if serverURL == "" {
		return nil, errors.New("transcription: server URL must not be empty")
	}
	c := &client{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// postWAV uploads pcm as audio.wav to path with the given form fields and
// returns the status code and body.
func (c *client) postWAV(ctx context.Context, path string, pcm []byte, sampleRate int, fields map[string]string) (int, []byte, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return 0, nil, err
		}
		defer c.sem.Release(1)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return 0, nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(pcm, sampleRate, 1)); err != nil {
		return 0, nil, fmt.Errorf("write wav data: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return 0, nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return 0, nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, &body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}
