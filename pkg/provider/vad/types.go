package vad

import (
	"errors"
	"fmt"
	"time"
)

// Kind selects the segmentation strategy a classifier supports.
type Kind string

const (
	// KindFrame marks per-frame classifiers ([FrameClassifier]).
	KindFrame Kind = "frame"

	// KindWindow marks buffer-scoring classifiers ([WindowClassifier]).
	KindWindow Kind = "window"
)

// Range is a speech region inside an analysed buffer, as offsets from the
// buffer start. End is exclusive.
type Range struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration { return r.End - r.Start }

// Config holds the tunables shared by the bundled classifiers. Fields that do
// not apply to a given classifier are ignored by it.
type Config struct {
	// Aggressiveness is the per-frame filtering level, 0 (least aggressive
	// about filtering out non-speech) to 3 (most aggressive).
	Aggressiveness int

	// Threshold is the speech probability at or above which a window counts
	// as speech. Range: (0, 1).
	Threshold float64

	// NegThreshold is the probability below which an active speech region
	// starts ending. Zero means Threshold - 0.15.
	NegThreshold float64

	// MinSpeech discards speech regions shorter than this.
	MinSpeech time.Duration

	// MinSilence is how long probability must stay below NegThreshold before
	// a speech region is closed.
	MinSilence time.Duration

	// SpeechPad widens every reported region on both sides.
	SpeechPad time.Duration
}

// Validate checks the configuration and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad: aggressiveness %d out of range [0, 3]", c.Aggressiveness))
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("vad: threshold %.2f out of range [0, 1)", c.Threshold))
	}
	if c.NegThreshold < 0 || (c.Threshold > 0 && c.NegThreshold > c.Threshold) {
		errs = append(errs, fmt.Errorf("vad: neg threshold %.2f must be in [0, threshold]", c.NegThreshold))
	}
	if c.MinSpeech < 0 || c.MinSilence < 0 || c.SpeechPad < 0 {
		errs = append(errs, errors.New("vad: durations must not be negative"))
	}
	return errors.Join(errs...)
}
