// Package diarize implements the diarize-first batch pipeline run over a
// complete meeting buffer: band-pass and normalise the signal, scan it with
// overlapping windows clustered by a run-local speaker registry, merge the
// resulting timeline, then transcribe each merged run on its own.
//
// Speaker labels are only meaningful within one run.
package diarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/speaker"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// Pipeline runs the batch diarization. It holds no per-run state and is safe
// for concurrent use.
type Pipeline struct {
	cfg        Config
	asr        transcription.Transcriber
	embedder   transcription.Embedder
	sampleRate int
}

// NewPipeline creates a pipeline. embedder may be nil, in which case Run
// transcribes the whole buffer as one unlabeled segment.
func NewPipeline(cfg Config, asr transcription.Transcriber, embedder transcription.Embedder, sampleRate int) *Pipeline {
	return &Pipeline{cfg: cfg, asr: asr, embedder: embedder, sampleRate: sampleRate}
}

// Config returns the pipeline tunables.
func (p *Pipeline) Config() Config { return p.cfg }

// Run diarizes and transcribes pcm. Segments are ordered by start and labeled
// "Speaker N" with N starting at 1. An empty or silent buffer yields no
// segments. Adapter failures on individual windows or segments are logged
// and skipped; only context cancellation aborts the run. When the embedding
// adapter fails on every embedded window or on most voiced windows, the
// buffer is transcribed as one unlabelled segment instead.
func (p *Pipeline) Run(ctx context.Context, pcm []byte) ([]types.Segment, error) {
	if len(pcm) < audio.BytesPerSample {
		return nil, nil
	}

	samples := p.Preprocess(audio.ToFloat(pcm))

	if p.embedder == nil {
		return p.transcribeWhole(ctx, samples)
	}

	timeline, stats, err := p.scan(ctx, samples)
	if err != nil {
		return nil, err
	}
	if stats.degraded(len(timeline)) {
		slog.Warn("diarize: embedding adapter unavailable, transcribing without speaker labels",
			"voiced_windows", stats.voiced, "failed_windows", stats.failed)
		return p.transcribeWhole(ctx, samples)
	}
	merged := Merge(timeline, p.cfg.MergeGap, p.cfg.MinSegment)

	// merged is in ascending start order by construction.
	segments := make([]types.Segment, 0, len(merged))
	for _, run := range merged {
		text, err := p.transcribe(ctx, samples, run.Start-p.cfg.Padding, run.End+p.cfg.Padding)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("diarize: segment transcription failed", "start", run.Start, "end", run.End, "err", err)
			continue
		}
		if utf8.RuneCountInString(text) <= 1 {
			continue
		}
		segments = append(segments, types.Segment{
			Start:   run.Start.Seconds(),
			End:     run.End.Seconds(),
			Speaker: fmt.Sprintf("Speaker %d", run.Speaker+1),
			Text:    text,
		})
	}
	return segments, nil
}

// Preprocess band-passes samples to the speech band and scales them to the
// configured peak. The input is not modified.
func (p *Pipeline) Preprocess(samples []float32) []float32 {
	out := audio.BandPass(samples, p.sampleRate, p.cfg.LowCutHz, p.cfg.HighCutHz)
	audio.PeakNormalize(out, p.cfg.PeakLevel)
	return out
}

// Scan slides a window over preprocessed samples and returns the raw speaker
// timeline. A run ends where the speaker changes, at the end of its last
// voiced window when silence follows, or at the end of the buffer.
func (p *Pipeline) Scan(ctx context.Context, samples []float32) ([]TimelineSegment, error) {
	timeline, _, err := p.scan(ctx, samples)
	return timeline, err
}

// scanStats counts the voiced windows of a scan and how many of them the
// embedding adapter failed on. ErrNoEmbedding is not a failure.
type scanStats struct {
	voiced int
	failed int
}

// degraded reports whether the embedder was failing badly enough that a
// labelled transcript would lose speech: every embedded window failed, or
// more than half of the voiced windows did.
func (s scanStats) degraded(timelineLen int) bool {
	if s.failed == 0 {
		return false
	}
	return timelineLen == 0 || s.failed*2 > s.voiced
}

func (p *Pipeline) scan(ctx context.Context, samples []float32) ([]TimelineSegment, scanStats, error) {
	var stats scanStats
	if p.embedder == nil {
		return nil, stats, errors.New("diarize: scan requires an embedder")
	}

	win := p.samplesFor(p.cfg.Window)
	step := p.samplesFor(p.cfg.Step)
	if win <= 0 || step <= 0 {
		return nil, stats, fmt.Errorf("diarize: window %v and step %v too short", p.cfg.Window, p.cfg.Step)
	}

	reg := speaker.NewLocalRegistry(p.cfg.Threshold)
	var (
		timeline []TimelineSegment
		cur      = -1
		curStart time.Duration
		lastEnd  time.Duration
	)
	for i := 0; i+win <= len(samples); i += step {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		ts := p.offset(i)
		chunk := samples[i : i+win]

		if audio.MeanSquare(chunk) < p.cfg.SilenceFloor {
			if cur >= 0 {
				timeline = append(timeline, TimelineSegment{Start: curStart, End: lastEnd, Speaker: cur})
				cur = -1
			}
			continue
		}

		stats.voiced++
		emb, err := p.embedder.Embed(ctx, audio.ToPCM(chunk), p.sampleRate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			if !errors.Is(err, transcription.ErrNoEmbedding) {
				stats.failed++
				slog.Warn("diarize: window embedding failed", "offset", ts, "err", err)
			}
			continue
		}

		spk := reg.Assign(emb)
		if spk != cur {
			if cur >= 0 {
				timeline = append(timeline, TimelineSegment{Start: curStart, End: ts, Speaker: cur})
			}
			cur = spk
			curStart = ts
		}
		lastEnd = ts + p.cfg.Window
	}
	if cur >= 0 {
		timeline = append(timeline, TimelineSegment{Start: curStart, End: p.offset(len(samples)), Speaker: cur})
	}
	return timeline, stats, nil
}

func (p *Pipeline) transcribeWhole(ctx context.Context, samples []float32) ([]types.Segment, error) {
	end := p.offset(len(samples))
	rec, err := p.recognise(ctx, samples, 0, end)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("diarize: transcription failed", "err", err)
		return nil, nil
	}

	// Timed ASR segments keep their own boundaries; otherwise the whole
	// recording becomes one segment.
	var out []types.Segment
	for _, seg := range rec.Segments {
		text := strings.TrimSpace(seg.Text)
		if utf8.RuneCountInString(text) <= 1 {
			continue
		}
		out = append(out, types.Segment{
			Start: max(0, seg.Start),
			End:   min(end.Seconds(), seg.End),
			Text:  text,
		})
	}
	if len(out) > 0 {
		return out, nil
	}

	text := strings.TrimSpace(rec.Text)
	if utf8.RuneCountInString(text) <= 1 {
		return nil, nil
	}
	return []types.Segment{{Start: 0, End: end.Seconds(), Text: text}}, nil
}

// transcribe recognises samples[from:to], clamped to the buffer.
func (p *Pipeline) transcribe(ctx context.Context, samples []float32, from, to time.Duration) (string, error) {
	rec, err := p.recognise(ctx, samples, from, to)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rec.Text), nil
}

func (p *Pipeline) recognise(ctx context.Context, samples []float32, from, to time.Duration) (*types.Recognition, error) {
	lo := max(0, p.samplesFor(from))
	hi := min(len(samples), p.samplesFor(to))
	if hi <= lo {
		return &types.Recognition{}, nil
	}
	rec, err := p.asr.Transcribe(ctx, audio.ToPCM(samples[lo:hi]), p.sampleRate)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &types.Recognition{}, nil
	}
	return rec, nil
}

func (p *Pipeline) samplesFor(d time.Duration) int {
	return int(int64(d) * int64(p.sampleRate) / int64(time.Second))
}

func (p *Pipeline) offset(sample int) time.Duration {
	return time.Duration(int64(sample) * int64(time.Second) / int64(p.sampleRate))
}
