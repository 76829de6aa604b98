package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

var _ Embedder = (*EmbeddingClient)(nil)

// EmbeddingClient talks to a speaker-embedding sidecar exposing POST /embed.
// The sidecar answers 200 with {"embedding": [...]} or 204 when the audio is
// insufficient.
type EmbeddingClient struct {
	*client
}

// NewEmbeddingClient creates an embedding adapter for serverURL.
func NewEmbeddingClient(serverURL string, opts ...Option) (*EmbeddingClient, error) {
	c, err := newClient(serverURL, opts)
	if err != nil {
		return nil, err
	}
	return &EmbeddingClient{client: c}, nil
}

// Embed returns the raw (not necessarily normalised) embedding of pcm.
func (ec *EmbeddingClient) Embed(ctx context.Context, pcm []byte, sampleRate int) ([]float32, error) {
	if len(pcm) == 0 {
		return nil, ErrNoEmbedding
	}

	status, data, err := ec.postWAV(ctx, "/embed", pcm, sampleRate, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, ErrNoEmbedding
	default:
		return nil, fmt.Errorf("embedding: server returned HTTP %d", status)
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("embedding: parse JSON response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	return out.Embedding, nil
}
