// Package vad decides phrase boundaries on a live PCM stream.
//
// The Detector is an energy-based state machine: every chunk is classified as
// silence or voice by its RMS amplitude, silent runs are timed, and a trigger
// fires once a phrase is followed by enough silence or has grown past the
// maximum phrase duration. Time is supplied by the caller, which lets the
// session drive it with stream time (audio received so far) instead of the
// wall clock.
//
// A Detector is not safe for concurrent use; each live session owns one.
package vad

import (
	"fmt"
	"time"
)

// Config holds the trigger tunables.
type Config struct {
	// SilenceThreshold is the RMS level (16-bit scale) below which a chunk
	// counts as silence.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// SilenceDuration is how long a silent run must last before a phrase is
	// considered complete.
	SilenceDuration time.Duration `yaml:"silence_duration"`

	// MinPhraseDuration is the shortest phrase a silence trigger may submit.
	MinPhraseDuration time.Duration `yaml:"min_phrase_duration"`

	// MaxPhraseDuration forces a trigger during continuous speech.
	MaxPhraseDuration time.Duration `yaml:"max_phrase_duration"`

	// Cooldown is the minimum spacing between two triggers.
	Cooldown time.Duration `yaml:"cooldown"`

	// Overlap is the tail of a submitted phrase kept as the seed of the next.
	Overlap time.Duration `yaml:"overlap"`
}

// DefaultConfig returns the tunables used by the live path.
func DefaultConfig() Config {
	return Config{
		SilenceThreshold:  300,
		SilenceDuration:   2 * time.Second,
		MinPhraseDuration: 2 * time.Second,
		MaxPhraseDuration: 20 * time.Second,
		Cooldown:          500 * time.Millisecond,
		Overlap:           time.Second,
	}
}

// Validate reports tunables that would stall or flood the trigger.
func (c Config) Validate() error {
	switch {
	case c.SilenceThreshold <= 0:
		return fmt.Errorf("silence_threshold must be positive, got %v", c.SilenceThreshold)
	case c.MaxPhraseDuration <= 0:
		return fmt.Errorf("max_phrase_duration must be positive, got %v", c.MaxPhraseDuration)
	case c.MinPhraseDuration > c.MaxPhraseDuration:
		return fmt.Errorf("min_phrase_duration %v exceeds max_phrase_duration %v", c.MinPhraseDuration, c.MaxPhraseDuration)
	case c.Overlap < 0 || c.Overlap >= c.MaxPhraseDuration:
		return fmt.Errorf("overlap %v must be in [0, max_phrase_duration)", c.Overlap)
	case c.SilenceDuration < 0 || c.Cooldown < 0:
		return fmt.Errorf("silence_duration and cooldown must not be negative")
	}
	return nil
}

// Reason says why a trigger fired.
type Reason int

const (
	// None means the chunk did not complete a phrase.
	None Reason = iota

	// Silence means the phrase was closed by a long enough silent run.
	Silence

	// Forced means the phrase hit MaxPhraseDuration.
	Forced
)

func (r Reason) String() string {
	switch r {
	case None:
		return "none"
	case Silence:
		return "silence"
	case Forced:
		return "forced"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Chunk describes one observed chunk of audio.
type Chunk struct {
	// RMS is the chunk's amplitude on the 16-bit scale.
	RMS float64

	// Start and End bound the chunk on the stream clock.
	Start, End time.Time

	// Phrase is the duration of the phrase buffer including this chunk.
	Phrase time.Duration

	// Busy is true while a previously triggered phrase is still processing.
	Busy bool
}

// Detector tracks silence runs and trigger timing for one stream.
type Detector struct {
	cfg Config

	inSilence    bool
	silenceStart time.Time
	lastTrigger  time.Time
}

// NewDetector creates a detector whose cooldown clock starts at start.
func NewDetector(cfg Config, start time.Time) *Detector {
	return &Detector{cfg: cfg, lastTrigger: start}
}

// Config returns the tunables the detector was built with.
func (d *Detector) Config() Config { return d.cfg }

// IsSilent classifies an RMS level.
func (d *Detector) IsSilent(rms float64) bool {
	return rms < d.cfg.SilenceThreshold
}

// SilenceStart returns the start of the current silent run, if any.
func (d *Detector) SilenceStart() (time.Time, bool) {
	return d.silenceStart, d.inSilence
}

// Observe feeds one chunk through the state machine and reports whether it
// completes a phrase. On a trigger the silence run is reset and the cooldown
// clock restarts at c.End.
func (d *Detector) Observe(c Chunk) Reason {
	sinceLast := c.End.Sub(d.lastTrigger)
	reason := None

	if d.IsSilent(c.RMS) {
		if !d.inSilence {
			d.inSilence = true
			d.silenceStart = c.Start
		}
		silence := c.End.Sub(d.silenceStart)
		if silence > d.cfg.SilenceDuration &&
			c.Phrase > d.cfg.MinPhraseDuration &&
			sinceLast > d.cfg.Cooldown &&
			!c.Busy {
			reason = Silence
		}
	} else {
		d.inSilence = false
	}

	// Safety net, evaluated on every chunk regardless of silence.
	if reason == None &&
		c.Phrase > d.cfg.MaxPhraseDuration &&
		sinceLast > d.cfg.Cooldown &&
		!c.Busy {
		reason = Forced
	}

	if reason != None {
		d.inSilence = false
		d.lastTrigger = c.End
	}
	return reason
}
