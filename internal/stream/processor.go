package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/broadcast"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/observe"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/speaker"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/transcription"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/types"
)

// UnknownSpeaker labels live phrases without a speaker identity.
const UnknownSpeaker = "Unknown"

// PhraseProcessor turns a live phrase into a live_transcript event: it
// recognises the audio, drops filler, attributes the phrase to a session
// speaker and publishes the result. With speaker identification enabled the
// recognised text also goes out as an unlabelled preview event as soon as
// recognition finishes.
type PhraseProcessor struct {
	asr        transcription.Transcriber
	identifier *speaker.Identifier
	filter     *transcription.FillerFilter
	pub        broadcast.Publisher
	metrics    *observe.Metrics
}

var _ PhraseHandler = (*PhraseProcessor)(nil)

// NewPhraseProcessor creates a processor. identifier may be nil, in which
// case every phrase is published as UnknownSpeaker.
func NewPhraseProcessor(asr transcription.Transcriber, identifier *speaker.Identifier, filter *transcription.FillerFilter, pub broadcast.Publisher, metrics *observe.Metrics) *PhraseProcessor {
	return &PhraseProcessor{
		asr:        asr,
		identifier: identifier,
		filter:     filter,
		pub:        pub,
		metrics:    metrics,
	}
}

// HandlePhrase implements PhraseHandler. Recognition and speaker embedding
// run concurrently; only a recognition failure is returned.
func (pp *PhraseProcessor) HandlePhrase(ctx context.Context, meetingID string, p Phrase) error {
	var (
		rec   *types.Recognition
		match speaker.Match
		known bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		r, err := pp.asr.Transcribe(gctx, p.PCM, audio.SampleRate)
		pp.metrics.RecordAdapter(ctx, observe.AdapterASR, time.Since(start), err != nil)
		if err != nil {
			return fmt.Errorf("transcribe phrase: %w", err)
		}
		rec = r
		if pp.identifier != nil {
			pp.publishPreview(meetingID, p, r)
		}
		return nil
	})
	if pp.identifier != nil {
		g.Go(func() error {
			start := time.Now()
			m, ok, err := pp.identifier.Identify(gctx, p.PCM, p.ObservedAt)
			pp.metrics.RecordAdapter(ctx, observe.AdapterEmbedding, time.Since(start), err != nil)
			if err != nil {
				slog.Warn("stream: speaker identification failed", "meeting_id", meetingID, "err", err)
				return nil
			}
			match, known = m, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if rec == nil {
		rec = &types.Recognition{}
	}
	text := strings.TrimSpace(rec.Text)
	if pp.filter.IsFiller(text) {
		pp.metrics.RecordFiltered(ctx)
		slog.Debug("stream: filtered filler", "meeting_id", meetingID, "text", text)
		return nil
	}

	label := UnknownSpeaker
	if known {
		label = match.Label()
	}

	pp.pub.Publish(meetingID, types.Event{
		Type:      types.EventLiveTranscript,
		MeetingID: meetingID,
		Speaker:   label,
		Text:      text,
		Start:     p.Start.Seconds(),
		End:       p.End.Seconds(),
		IsFinal:   false,
		Timestamp: time.Now(),
	})
	return nil
}

func (pp *PhraseProcessor) publishPreview(meetingID string, p Phrase, rec *types.Recognition) {
	if rec == nil {
		return
	}
	text := strings.TrimSpace(rec.Text)
	if pp.filter.IsFiller(text) {
		return
	}
	pp.pub.Publish(meetingID, types.Event{
		Type:      types.EventPreview,
		MeetingID: meetingID,
		Text:      text,
		Start:     p.Start.Seconds(),
		End:       p.End.Seconds(),
		Timestamp: time.Now(),
	})
}
