// Package stream runs live meeting sessions: it buffers incoming PCM, drives
// the VAD trigger on stream time, hands completed phrases to a PhraseHandler
// in the background, and flushes the whole recording to the batch pipeline
// when the session ends.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-diarizer/internal/vad"
)

// Phrase is one unit of live processing. Offsets are stream time from the
// start of the session.
type Phrase struct {
	PCM []byte

	// Start is the offset of PCM[0]; it lies before the previous phrase's
	// end when an overlap tail was carried over.
	Start time.Duration

	// End is the offset just after the last byte of PCM.
	End time.Duration

	// SpeechEnd is where the trailing silent run began, or End when the
	// phrase did not end in silence.
	SpeechEnd time.Duration

	// ObservedAt is End on the session clock, used as the clustering time.
	ObservedAt time.Time

	// Reason is the trigger that closed the phrase. None marks the flush of
	// the pending phrase at stop.
	Reason vad.Reason
}

// Duration returns the length of the phrase audio.
func (p Phrase) Duration() time.Duration { return p.End - p.Start }

// PhraseHandler processes a completed phrase. Errors are logged by the
// session and never retried.
type PhraseHandler interface {
	HandlePhrase(ctx context.Context, meetingID string, p Phrase) error
}

// PhraseHandlerFunc adapts a function to PhraseHandler.
type PhraseHandlerFunc func(ctx context.Context, meetingID string, p Phrase) error

// HandlePhrase calls f.
func (f PhraseHandlerFunc) HandlePhrase(ctx context.Context, meetingID string, p Phrase) error {
	return f(ctx, meetingID, p)
}

// Session is the per-connection audio state. Feed and Stop must be called
// from a single goroutine; phrase processing runs on its own goroutines.
type Session struct {
	id         string
	sampleRate int
	start      time.Time
	detector   *vad.Detector
	handler    PhraseHandler
	ctx        context.Context

	// spawn runs phrase processing; tests replace it to run inline.
	spawn func(func())

	finalBuf    []byte
	phraseBuf   []byte
	phraseStart time.Duration
	received    int
	stopped     bool

	processing atomic.Bool
	wg         sync.WaitGroup

	// lastDone is closed when the most recently dispatched phrase finishes.
	// Each phrase waits for its predecessor, so at most one runs at a time.
	lastDone chan struct{}
}

// NewSession creates a session whose stream clock starts at start. Phrase
// processing runs with ctx, which should outlive the connection so that a
// disconnect does not cancel work in flight.
func NewSession(ctx context.Context, id string, cfg vad.Config, handler PhraseHandler, start time.Time) *Session {
	return &Session{
		id:         id,
		sampleRate: audio.SampleRate,
		start:      start,
		detector:   vad.NewDetector(cfg, start),
		handler:    handler,
		ctx:        ctx,
		spawn:      func(f func()) { go f() },
	}
}

// ID returns the meeting id.
func (s *Session) ID() string { return s.id }

// Elapsed returns the stream time received so far.
func (s *Session) Elapsed() time.Duration { return audio.Duration(s.received, s.sampleRate) }

// PhraseDuration returns the length of the pending phrase buffer.
func (s *Session) PhraseDuration() time.Duration {
	return audio.Duration(len(s.phraseBuf), s.sampleRate)
}

// Busy reports whether a triggered phrase is still being processed.
func (s *Session) Busy() bool { return s.processing.Load() }

// Feed appends chunk to the session buffers and runs the trigger. It returns
// the trigger reason, vad.None when no phrase was dispatched. Feeding a
// stopped session is a no-op.
func (s *Session) Feed(chunk []byte) vad.Reason {
	if s.stopped || len(chunk) == 0 {
		return vad.None
	}

	chunkStart := s.Elapsed()
	s.finalBuf = append(s.finalBuf, chunk...)
	s.phraseBuf = append(s.phraseBuf, chunk...)
	s.received += len(chunk)
	chunkEnd := s.Elapsed()

	silenceStart, inSilence := s.detector.SilenceStart()

	reason := s.detector.Observe(vad.Chunk{
		RMS:    audio.RMS(chunk),
		Start:  s.start.Add(chunkStart),
		End:    s.start.Add(chunkEnd),
		Phrase: s.PhraseDuration(),
		Busy:   s.processing.Load(),
	})
	if reason == vad.None {
		return vad.None
	}

	speechEnd := chunkEnd
	if reason == vad.Silence {
		speechEnd = chunkStart
		if inSilence {
			speechEnd = silenceStart.Sub(s.start)
		}
	}

	p := s.cut(chunkEnd, speechEnd, reason)
	s.processing.Store(true)
	s.dispatch(p, true)
	return reason
}

// cut snapshots the phrase buffer and keeps its overlap tail as the seed of
// the next phrase.
func (s *Session) cut(end, speechEnd time.Duration, reason vad.Reason) Phrase {
	p := Phrase{
		PCM:        append([]byte(nil), s.phraseBuf...),
		Start:      s.phraseStart,
		End:        end,
		SpeechEnd:  speechEnd,
		ObservedAt: s.start.Add(end),
		Reason:     reason,
	}

	overlap := audio.ByteOffset(s.detector.Config().Overlap, s.sampleRate)
	if len(s.phraseBuf) > overlap {
		s.phraseBuf = append([]byte(nil), s.phraseBuf[len(s.phraseBuf)-overlap:]...)
		s.phraseStart = end - audio.Duration(overlap, s.sampleRate)
	}
	return p
}

// dispatch hands p to the handler in the background once the previous
// phrase has finished. A guarded dispatch releases the processing flag when
// the handler returns, whatever the outcome.
func (s *Session) dispatch(p Phrase, guarded bool) {
	prev := s.lastDone
	done := make(chan struct{})
	s.lastDone = done

	s.wg.Add(1)
	s.spawn(func() {
		defer s.wg.Done()
		defer close(done)
		if guarded {
			defer s.processing.Store(false)
		}
		if prev != nil {
			<-prev
		}
		if err := s.handler.HandlePhrase(s.ctx, s.id, p); err != nil {
			slog.Warn("stream: phrase processing failed",
				"meeting_id", s.id,
				"start", p.Start,
				"end", p.End,
				"err", err,
			)
		}
	})
}

// Stop ends the session. Any pending phrase is dispatched without waiting on
// the processing flag; it runs after the phrase in flight, if any. The full
// recording is returned for the batch pipeline. Subsequent calls return nil.
func (s *Session) Stop() []byte {
	if s.stopped {
		return nil
	}
	s.stopped = true

	if len(s.phraseBuf) > 0 {
		end := s.Elapsed()
		speechEnd := end
		if start, ok := s.detector.SilenceStart(); ok {
			speechEnd = start.Sub(s.start)
		}
		p := Phrase{
			PCM:        s.phraseBuf,
			Start:      s.phraseStart,
			End:        end,
			SpeechEnd:  speechEnd,
			ObservedAt: s.start.Add(end),
			Reason:     vad.None,
		}
		s.phraseBuf = nil
		s.dispatch(p, false)
	}

	final := s.finalBuf
	s.finalBuf = nil
	return final
}

// Wait blocks until every dispatched phrase has been processed.
func (s *Session) Wait() { s.wg.Wait() }
