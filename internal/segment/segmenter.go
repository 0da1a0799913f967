// Package segment turns a stream of classified audio frames into discrete
// utterances.
//
// Two strategies are provided behind the [Segmenter] interface. The frame
// strategy ([NewFrame]) classifies each frame as it arrives and runs it
// through a ring-buffer [Hysteresis] machine. The window strategy
// ([NewWindow]) accumulates audio in fixed chunks and asks a windowed
// classifier whether the buffer ends in silence. The strategy is chosen once,
// at construction, from the classifier's [vad.Kind].
//
// Segmenters hold per-session state and are not safe for concurrent use.
package segment

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// Segmenter consumes frames and yields completed utterance segments.
type Segmenter interface {
	// Push feeds one frame. It returns a segment and true when the frame
	// completed an utterance. Classifier failures are returned as errors.
	Push(frame audio.Frame) (audio.Segment, bool, error)

	// Reset discards any partial utterance.
	Reset()

	// Kind names the classification strategy, used as a metric label.
	Kind() vad.Kind
}

// ─── Frame strategy ──────────────────────────────────────────────────────────

// FrameSegmenter classifies frames one at a time and segments them with a
// [Hysteresis] machine.
type FrameSegmenter struct {
	cls vad.FrameClassifier
	h   *Hysteresis
}

var _ Segmenter = (*FrameSegmenter)(nil)

// NewFrame creates a per-frame segmenter. A zero cfg.FrameDuration defaults
// to [audio.FrameDuration] and a zero cfg.Ratio to [DefaultRatio].
func NewFrame(cls vad.FrameClassifier, cfg Config) (*FrameSegmenter, error) {
	if cls == nil {
		return nil, errors.New("segment: frame classifier is nil")
	}
	cfg.FrameDuration = cmp.Or(cfg.FrameDuration, audio.FrameDuration)
	cfg.Ratio = cmp.Or(cfg.Ratio, DefaultRatio)
	h, err := NewHysteresis(cfg)
	if err != nil {
		return nil, err
	}
	return &FrameSegmenter{cls: cls, h: h}, nil
}

// Push implements [Segmenter].
func (s *FrameSegmenter) Push(frame audio.Frame) (audio.Segment, bool, error) {
	speech, err := s.cls.IsSpeech(frame.Data, frame.SampleRate)
	if err != nil {
		return audio.Segment{}, false, fmt.Errorf("segment: classify frame at %v: %w", frame.Timestamp, err)
	}
	seg, ok := s.h.Push(ClassifiedFrame{Frame: frame, Speech: speech})
	return seg, ok, nil
}

// Reset implements [Segmenter].
func (s *FrameSegmenter) Reset() { s.h.Reset() }

// Kind implements [Segmenter].
func (s *FrameSegmenter) Kind() vad.Kind { return vad.KindFrame }

// State reports the hysteresis state.
func (s *FrameSegmenter) State() State { return s.h.State() }

// ─── Window strategy ─────────────────────────────────────────────────────────

// Window strategy defaults.
const (
	DefaultChunk     = 3 * time.Second
	DefaultMaxBuffer = 30 * time.Second
)

// WindowConfig controls the window strategy.
type WindowConfig struct {
	// Chunk is how much new audio is accumulated between classifier runs.
	Chunk time.Duration

	// MaxBuffer bounds the accumulated audio. A buffer that reaches it without
	// any speech is discarded; one that reaches it mid-speech is emitted.
	MaxBuffer time.Duration
}

// WindowSegmenter accumulates audio and emits the whole buffer once the
// windowed classifier reports that the last speech region ended before the
// end of the buffer.
type WindowSegmenter struct {
	cls vad.WindowClassifier
	cfg WindowConfig

	buf     bytes.Buffer
	rate    int
	start   time.Duration
	frames  int
	pending time.Duration
}

var _ Segmenter = (*WindowSegmenter)(nil)

// NewWindow creates a windowed segmenter. Zero config values take the package
// defaults.
func NewWindow(cls vad.WindowClassifier, cfg WindowConfig) (*WindowSegmenter, error) {
	if cls == nil {
		return nil, errors.New("segment: window classifier is nil")
	}
	cfg.Chunk = cmp.Or(cfg.Chunk, DefaultChunk)
	cfg.MaxBuffer = cmp.Or(cfg.MaxBuffer, DefaultMaxBuffer)
	if cfg.Chunk < 0 || cfg.MaxBuffer < cfg.Chunk {
		return nil, fmt.Errorf("segment: max buffer %v must be at least one chunk (%v)", cfg.MaxBuffer, cfg.Chunk)
	}
	return &WindowSegmenter{cls: cls, cfg: cfg}, nil
}

// Push implements [Segmenter].
func (s *WindowSegmenter) Push(frame audio.Frame) (audio.Segment, bool, error) {
	if s.buf.Len() == 0 {
		s.start = frame.Timestamp
		s.rate = cmp.Or(frame.SampleRate, audio.SampleRate)
	}
	s.buf.Write(frame.Data)
	s.frames++
	s.pending += audio.PCMDuration(len(frame.Data), s.rate)
	if s.pending < s.cfg.Chunk {
		return audio.Segment{}, false, nil
	}
	s.pending = 0

	ranges, err := s.cls.SpeechTimestamps(s.buf.Bytes(), s.rate)
	if err != nil {
		return audio.Segment{}, false, fmt.Errorf("segment: speech timestamps over %d bytes: %w", s.buf.Len(), err)
	}

	buffered := audio.PCMDuration(s.buf.Len(), s.rate)
	full := buffered >= s.cfg.MaxBuffer
	if len(ranges) == 0 {
		if full {
			slog.Debug("segment: discarding silent buffer", "buffered", buffered)
			s.Reset()
		}
		return audio.Segment{}, false, nil
	}

	last := ranges[len(ranges)-1]
	if last.End < buffered || full {
		if full && last.End >= buffered {
			slog.Debug("segment: buffer limit reached mid-speech", "buffered", buffered)
		}
		return s.emit(), true, nil
	}
	return audio.Segment{}, false, nil
}

// Kind implements [Segmenter].
func (s *WindowSegmenter) Kind() vad.Kind { return vad.KindWindow }

// Reset implements [Segmenter].
func (s *WindowSegmenter) Reset() {
	s.buf.Reset()
	s.frames = 0
	s.pending = 0
	s.start = 0
}

// Buffered reports how much audio is currently accumulated.
func (s *WindowSegmenter) Buffered() time.Duration {
	return audio.PCMDuration(s.buf.Len(), cmp.Or(s.rate, audio.SampleRate))
}

func (s *WindowSegmenter) emit() audio.Segment {
	pcm := make([]byte, s.buf.Len())
	copy(pcm, s.buf.Bytes())
	seg := audio.Segment{
		ID:         xid.New().String(),
		PCM:        pcm,
		SampleRate: s.rate,
		Start:      s.start,
		Frames:     s.frames,
	}
	s.Reset()
	return seg
}
