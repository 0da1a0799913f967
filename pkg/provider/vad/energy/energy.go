// Package energy provides a WebRTC-style per-frame voice activity classifier
// based on short-term signal energy and zero-crossing rate.
//
// The aggressiveness level (0–3) trades sensitivity for noise rejection the
// way WebRTC VAD modes do: higher levels demand more energy and a lower
// zero-crossing rate before a frame counts as speech. The classifier is
// stateless unless adaptive noise tracking is enabled with [WithAdaptive], so
// classifying the same frame twice yields the same verdict.
package energy

import (
	"fmt"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// level holds the decision thresholds for one aggressiveness setting.
type level struct {
	// minRMS is the frame RMS (int16 units) a speech frame must exceed.
	minRMS float64

	// maxZCR is the highest zero-crossing rate still accepted as voiced.
	maxZCR float64
}

var levels = [4]level{
	{minRMS: 150, maxZCR: 1.0},
	{minRMS: 300, maxZCR: 0.5},
	{minRMS: 500, maxZCR: 0.4},
	{minRMS: 800, maxZCR: 0.3},
}

// supportedFrameMs mirrors WebRTC VAD, which only accepts 10, 20 or 30 ms
// frames.
var supportedFrameMs = map[int]bool{10: true, 20: true, 30: true}

// Option is a functional option for [New].
type Option func(*Classifier)

// WithAdaptive enables a running noise-floor estimate: a frame must exceed
// both the fixed threshold and factor × noise floor. alpha is the smoothing
// weight of each new non-speech frame (0 < alpha < 1).
func WithAdaptive(factor, alpha float64) Option {
	return func(c *Classifier) {
		if factor > 0 && alpha > 0 && alpha < 1 {
			c.adaptive = true
			c.factor = factor
			c.alpha = alpha
		}
	}
}

// Classifier implements [vad.FrameClassifier].
type Classifier struct {
	level level
	mode  int

	adaptive bool
	factor   float64
	alpha    float64

	mu    sync.Mutex
	floor float64
}

var _ vad.FrameClassifier = (*Classifier)(nil)

// New creates a classifier at the given aggressiveness (0–3).
func New(aggressiveness int, opts ...Option) (*Classifier, error) {
	if aggressiveness < 0 || aggressiveness >= len(levels) {
		return nil, fmt.Errorf("energy: aggressiveness %d out of range [0, 3]", aggressiveness)
	}
	c := &Classifier{level: levels[aggressiveness], mode: aggressiveness}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Aggressiveness returns the configured mode.
func (c *Classifier) Aggressiveness() int { return c.mode }

// IsSpeech implements [vad.FrameClassifier].
func (c *Classifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := validate(frame, sampleRate); err != nil {
		return false, err
	}

	rms := audio.RMS(frame)
	speech := rms > c.level.minRMS && audio.ZeroCrossingRate(frame) <= c.level.maxZCR

	if c.adaptive {
		c.mu.Lock()
		if c.floor > 0 && rms <= c.factor*c.floor {
			speech = false
		}
		if !speech {
			if c.floor == 0 {
				c.floor = rms
			} else {
				c.floor = (1-c.alpha)*c.floor + c.alpha*rms
			}
		}
		c.mu.Unlock()
	}
	return speech, nil
}

func validate(frame []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("energy: sample rate %d: %w", sampleRate, vad.ErrInvalidFrame)
	}
	if len(frame) == 0 || len(frame)%audio.BytesPerSample != 0 {
		return fmt.Errorf("energy: frame of %d bytes: %w", len(frame), vad.ErrInvalidFrame)
	}
	samples := len(frame) / audio.BytesPerSample
	if samples*1000%sampleRate != 0 || !supportedFrameMs[samples*1000/sampleRate] {
		return fmt.Errorf("energy: frame of %d samples at %d Hz is not 10, 20 or 30 ms: %w",
			samples, sampleRate, vad.ErrInvalidFrame)
	}
	return nil
}
