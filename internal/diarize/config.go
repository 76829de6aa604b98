package diarize

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the batch pipeline tunables.
type Config struct {
	// LowCutHz and HighCutHz bound the speech band kept by preprocessing.
	LowCutHz  float64 `yaml:"low_cut_hz"`
	HighCutHz float64 `yaml:"high_cut_hz"`

	// PeakLevel is the absolute peak the preprocessed signal is scaled to.
	PeakLevel float64 `yaml:"peak_level"`

	// Window and Step shape the scan. Windows overlap when Step < Window.
	Window time.Duration `yaml:"window"`
	Step   time.Duration `yaml:"step"`

	// SilenceFloor is the mean-square energy (of [-1, 1] samples) below which
	// a window is skipped without embedding.
	SilenceFloor float64 `yaml:"silence_floor"`

	// Threshold is the local registry's cosine acceptance threshold.
	Threshold float64 `yaml:"threshold"`

	// MergeGap joins same-speaker runs closer than this. MinSegment drops
	// merged runs that are not longer than this.
	MergeGap   time.Duration `yaml:"merge_gap"`
	MinSegment time.Duration `yaml:"min_segment"`

	// Padding is added on both sides of a merged run before transcription.
	Padding time.Duration `yaml:"padding"`
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() Config {
	return Config{
		LowCutHz:     200,
		HighCutHz:    7000,
		PeakLevel:    0.9,
		Window:       2 * time.Second,
		Step:         time.Second,
		SilenceFloor: 0.001,
		Threshold:    0.30,
		MergeGap:     2 * time.Second,
		MinSegment:   time.Second,
		Padding:      100 * time.Millisecond,
	}
}

// Validate reports every invalid tunable.
func (c Config) Validate() error {
	var errs []error
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %v", c.Window))
	}
	if c.Step <= 0 {
		errs = append(errs, fmt.Errorf("step must be positive, got %v", c.Step))
	}
	if c.LowCutHz >= c.HighCutHz {
		errs = append(errs, fmt.Errorf("low_cut_hz %v must be below high_cut_hz %v", c.LowCutHz, c.HighCutHz))
	}
	if c.PeakLevel <= 0 || c.PeakLevel > 1 {
		errs = append(errs, fmt.Errorf("peak_level must be in (0, 1], got %v", c.PeakLevel))
	}
	if c.MergeGap < 0 || c.MinSegment < 0 || c.Padding < 0 {
		errs = append(errs, errors.New("merge_gap, min_segment and padding must not be negative"))
	}
	return errors.Join(errs...)
}
