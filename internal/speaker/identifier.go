package speaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
)

// Identifier embeds raw audio and resolves it against a live Registry.
type Identifier struct {
	embedder   transcription.Embedder
	registry   *Registry
	sampleRate int
	minSamples int
}

// NewIdentifier wires an embedder to a registry. Audio shorter than
// cfg.MinDuration is never embedded.
func NewIdentifier(embedder transcription.Embedder, registry *Registry, sampleRate int) *Identifier {
	minSamples := int(int64(registry.cfg.MinDuration) * int64(sampleRate) / int64(time.Second))
	return &Identifier{
		embedder:   embedder,
		registry:   registry,
		sampleRate: sampleRate,
		minSamples: minSamples,
	}
}

// Registry returns the registry the identifier resolves against.
func (id *Identifier) Registry() *Registry { return id.registry }

// Identify returns the speaker of pcm. The boolean is false when the audio is
// too short or the embedder produced no embedding; err is only set for
// adapter failures.
func (id *Identifier) Identify(ctx context.Context, pcm []byte, observedAt time.Time) (Match, bool, error) {
	if len(pcm)/audio.BytesPerSample < id.minSamples {
		return Match{}, false, nil
	}

	emb, err := id.embedder.Embed(ctx, pcm, id.sampleRate)
	if errors.Is(err, transcription.ErrNoEmbedding) {
		return Match{}, false, nil
	}
	if err != nil {
		return Match{}, false, fmt.Errorf("speaker: embed: %w", err)
	}
	if len(emb) == 0 {
		return Match{}, false, nil
	}
	return id.registry.Identify(emb, observedAt), true, nil
}
