// Package window provides a Silero-style windowed voice activity classifier.
//
// The classifier slides a fixed analysis window across the buffer, asks a
// [Scorer] for a speech probability per window, and turns the probability
// track into speech regions with two thresholds (speech onset at Threshold,
// release below NegThreshold), a minimum silence before a region is closed, a
// minimum region length, and symmetric padding. The default scorer maps
// window energy to a probability; a neural model can be plugged in through
// [WithScorer].
package window

import (
	"fmt"
	"math"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// Defaults match the usual Silero VAD settings for 16 kHz input.
const (
	DefaultThreshold  = 0.5
	DefaultMinSpeech  = 250 * time.Millisecond
	DefaultMinSilence = 100 * time.Millisecond
	DefaultSpeechPad  = 30 * time.Millisecond

	// DefaultWindowSamples is the analysis window length at 16 kHz (32 ms).
	DefaultWindowSamples = 512

	negThresholdOffset = 0.15
)

// Scorer returns the probability in [0, 1] that a window of int16 PCM
// contains speech.
type Scorer interface {
	Score(window []byte, sampleRate int) (float64, error)
}

// ScorerFunc adapts a plain function to [Scorer].
type ScorerFunc func(window []byte, sampleRate int) (float64, error)

// Score implements [Scorer].
func (f ScorerFunc) Score(window []byte, sampleRate int) (float64, error) {
	return f(window, sampleRate)
}

// EnergyScorer maps window RMS onto a probability with a logistic curve
// centred on Midpoint (int16 RMS units).
type EnergyScorer struct {
	Midpoint  float64
	Steepness float64
}

// Score implements [Scorer].
func (e EnergyScorer) Score(window []byte, _ int) (float64, error) {
	mid, k := e.Midpoint, e.Steepness
	if mid <= 0 {
		mid = 600
	}
	if k <= 0 {
		k = 0.01
	}
	return 1 / (1 + math.Exp(-k*(audio.RMS(window)-mid))), nil
}

// Option is a functional option for [New].
type Option func(*Classifier)

// WithScorer replaces the default [EnergyScorer].
func WithScorer(s Scorer) Option {
	return func(c *Classifier) { c.scorer = s }
}

// WithWindowSamples sets the analysis window length in samples.
func WithWindowSamples(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.windowSamples = n
		}
	}
}

// Classifier implements [vad.WindowClassifier].
type Classifier struct {
	scorer        Scorer
	windowSamples int

	threshold    float64
	negThreshold float64
	minSpeech    time.Duration
	minSilence   time.Duration
	pad          time.Duration
}

var _ vad.WindowClassifier = (*Classifier)(nil)

// New creates a classifier from cfg. Zero-valued tunables take the package
// defaults; NegThreshold defaults to Threshold - 0.15.
func New(cfg vad.Config, opts ...Option) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	c := &Classifier{
		scorer:        EnergyScorer{},
		windowSamples: DefaultWindowSamples,
		threshold:     cfg.Threshold,
		negThreshold:  cfg.NegThreshold,
		minSpeech:     cfg.MinSpeech,
		minSilence:    cfg.MinSilence,
		pad:           cfg.SpeechPad,
	}
	if c.threshold == 0 {
		c.threshold = DefaultThreshold
	}
	if c.negThreshold == 0 {
		c.negThreshold = max(c.threshold-negThresholdOffset, 0.01)
	}
	if c.minSpeech == 0 {
		c.minSpeech = DefaultMinSpeech
	}
	if c.minSilence == 0 {
		c.minSilence = DefaultMinSilence
	}
	if c.pad == 0 {
		c.pad = DefaultSpeechPad
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SpeechTimestamps implements [vad.WindowClassifier].
func (c *Classifier) SpeechTimestamps(pcm []byte, sampleRate int) ([]vad.Range, error) {
	if sampleRate <= 0 || len(pcm)%audio.BytesPerSample != 0 {
		return nil, fmt.Errorf("window: %d bytes at %d Hz: %w", len(pcm), sampleRate, vad.ErrInvalidFrame)
	}
	total := len(pcm) / audio.BytesPerSample
	win := c.windowSamples
	toSamples := func(d time.Duration) int { return int(int64(d) * int64(sampleRate) / int64(time.Second)) }
	minSpeech := toSamples(c.minSpeech)
	minSilence := toSamples(c.minSilence)
	pad := toSamples(c.pad)

	type span struct{ start, end int }
	var (
		spans     []span
		triggered bool
		cur       span
		tempEnd   = -1
	)

	for off := 0; off < total; off += win {
		end := min(off+win, total)
		p, err := c.scorer.Score(pcm[off*2:end*2], sampleRate)
		if err != nil {
			return nil, fmt.Errorf("window: score at sample %d: %w", off, err)
		}

		if p >= c.threshold && tempEnd >= 0 {
			tempEnd = -1
		}
		if p >= c.threshold && !triggered {
			triggered = true
			cur.start = off
			continue
		}
		if p < c.negThreshold && triggered {
			if tempEnd < 0 {
				tempEnd = off
			}
			if off+win-tempEnd < minSilence {
				continue
			}
			cur.end = tempEnd
			if cur.end-cur.start >= minSpeech {
				spans = append(spans, cur)
			}
			triggered = false
			tempEnd = -1
		}
	}
	if triggered && total-cur.start >= minSpeech {
		spans = append(spans, span{start: cur.start, end: total})
	}

	// Pad, clamp and merge regions that now touch.
	var out []vad.Range
	var last *span
	merged := make([]span, 0, len(spans))
	for _, s := range spans {
		s.start = max(s.start-pad, 0)
		s.end = min(s.end+pad, total)
		if last != nil && s.start <= last.end {
			last.end = max(last.end, s.end)
			continue
		}
		merged = append(merged, s)
		last = &merged[len(merged)-1]
	}
	for _, s := range merged {
		out = append(out, vad.Range{
			Start: time.Duration(s.start) * time.Second / time.Duration(sampleRate),
			End:   time.Duration(s.end) * time.Second / time.Duration(sampleRate),
		})
	}
	return out, nil
}
