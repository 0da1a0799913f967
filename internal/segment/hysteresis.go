package segment

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/MrWong99/parley/pkg/audio"
)

// DefaultRatio is the fraction of the ring that must agree before the state
// machine flips.
const DefaultRatio = 0.75

// State is the hysteresis state of a [Hysteresis] machine.
type State int

const (
	// Untriggered means no utterance is in progress.
	Untriggered State = iota

	// Triggered means an utterance is being accumulated.
	Triggered
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Untriggered:
		return "UNTRIGGERED"
	case Triggered:
		return "TRIGGERED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config controls the hysteresis ring.
type Config struct {
	// Padding is the span of audio the ring covers. Its capacity is
	// Padding / FrameDuration frames.
	Padding time.Duration

	// FrameDuration is the duration of each pushed frame.
	FrameDuration time.Duration

	// Ratio is the fraction of ring capacity that must be speech to open a
	// segment, or non-speech to close it. The comparison is strict.
	Ratio float64
}

// Capacity returns the ring capacity in frames.
func (c Config) Capacity() int {
	if c.FrameDuration <= 0 {
		return 0
	}
	return int(c.Padding / c.FrameDuration)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.FrameDuration <= 0 {
		errs = append(errs, fmt.Errorf("segment: frame duration %v must be positive", c.FrameDuration))
	} else if c.Capacity() < 1 {
		errs = append(errs, fmt.Errorf("segment: padding %v is shorter than one frame", c.Padding))
	}
	if c.Ratio <= 0 || c.Ratio >= 1 {
		errs = append(errs, fmt.Errorf("segment: ratio %.2f out of range (0, 1)", c.Ratio))
	}
	return errors.Join(errs...)
}

// Hysteresis is the two-state segmentation machine. It buffers the most
// recent frames in a ring; while untriggered it opens a segment once more than
// Ratio × capacity of them are speech, and while triggered it closes the
// segment once more than Ratio × capacity are non-speech.
//
// The fraction is always taken against the ring's capacity, never its current
// fill, so a partially filled ring cannot trigger early.
//
// A Hysteresis is not safe for concurrent use.
type Hysteresis struct {
	cfg       Config
	ring      *ring
	threshold float64
	state     State

	voiced bytes.Buffer
	start  time.Duration
	rate   int
	frames int
}

// NewHysteresis creates a machine in the [Untriggered] state.
func NewHysteresis(cfg Config) (*Hysteresis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	capacity := cfg.Capacity()
	return &Hysteresis{
		cfg:       cfg,
		ring:      newRing(capacity),
		threshold: cfg.Ratio * float64(capacity),
	}, nil
}

// State reports the current state.
func (h *Hysteresis) State() State { return h.state }

// Capacity reports the ring capacity in frames.
func (h *Hysteresis) Capacity() int { return h.ring.capacity() }

// Push feeds one classified frame. It returns a completed segment and true
// when this frame closed an utterance.
func (h *Hysteresis) Push(cf ClassifiedFrame) (audio.Segment, bool) {
	h.ring.push(cf)

	switch h.state {
	case Untriggered:
		if float64(h.ring.speech()) > h.threshold {
			h.state = Triggered
			h.voiced.Reset()
			h.frames = 0
			for i, f := range h.ring.frames() {
				if i == 0 {
					h.start = f.Frame.Timestamp
					h.rate = f.Frame.SampleRate
				}
				h.append(f.Frame)
			}
			h.ring.clear()
		}
		return audio.Segment{}, false

	case Triggered:
		h.append(cf.Frame)
		if float64(h.ring.silence()) > h.threshold {
			seg := h.segment()
			h.state = Untriggered
			h.ring.clear()
			return seg, true
		}
	}
	return audio.Segment{}, false
}

// Reset discards any partial utterance and returns to [Untriggered].
func (h *Hysteresis) Reset() {
	h.ring.clear()
	h.voiced.Reset()
	h.frames = 0
	h.start = 0
	h.state = Untriggered
}

func (h *Hysteresis) append(f audio.Frame) {
	h.voiced.Write(f.Data)
	h.frames++
}

func (h *Hysteresis) segment() audio.Segment {
	pcm := make([]byte, h.voiced.Len())
	copy(pcm, h.voiced.Bytes())
	h.voiced.Reset()
	seg := audio.Segment{
		ID:         xid.New().String(),
		PCM:        pcm,
		SampleRate: cmp.Or(h.rate, audio.SampleRate),
		Start:      h.start,
		Frames:     h.frames,
	}
	h.frames = 0
	return seg
}
