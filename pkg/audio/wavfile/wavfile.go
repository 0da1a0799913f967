// Package wavfile implements [audio.Source] by replaying a WAV recording in
// real time. It is used for offline runs and reproducible demos: any sample
// rate or channel layout is resampled to the 16 kHz mono capture format with
// github.com/gopxl/beep.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/MrWong99/parley/pkg/audio"
)

// resampleQuality is beep's interpolation quality (1 = linear .. 6 = best).
const resampleQuality = 4

// Option is a functional option for [New].
type Option func(*Source)

// WithRealtime paces ReadFrame to one frame per frame duration, the way a
// live device would deliver audio. Disabled by default.
func WithRealtime(enabled bool) Option {
	return func(s *Source) { s.realtime = enabled }
}

// WithLoop restarts the recording from the beginning when it ends instead of
// reporting the source as disconnected.
func WithLoop(enabled bool) Option {
	return func(s *Source) { s.loop = enabled }
}

// Source replays a WAV file as a stream of capture frames.
type Source struct {
	path     string
	realtime bool
	loop     bool

	mu       sync.Mutex
	file     *os.File
	decoder  beep.StreamSeekCloser
	stream   beep.Streamer
	buf      [][2]float64
	frames   int64
	started  time.Time
	open     bool
	closed   bool
	finished bool
}

var _ audio.Source = (*Source)(nil)

// New returns an unopened source for the WAV file at path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path, buf: make([][2]float64, audio.FrameSamples)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open decodes the WAV header and prepares the resampling pipeline.
func (s *Source) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return &audio.DeviceError{Op: "open", Device: s.path, Err: err}
	}
	dec, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return &audio.DeviceError{Op: "open", Device: s.path, Err: fmt.Errorf("decode wav: %w", err)}
	}

	var stream beep.Streamer = dec
	if format.SampleRate != beep.SampleRate(audio.SampleRate) {
		stream = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(audio.SampleRate), dec)
	}

	s.file = f
	s.decoder = dec
	s.stream = stream
	s.frames = 0
	s.started = time.Now()
	s.open = true
	s.closed = false
	s.finished = false
	return nil
}

// ReadFrame returns the next 20 ms of the recording. When the recording ends
// without looping it returns [audio.ErrDeviceDisconnected]. A final partial
// frame is padded with silence.
func (s *Source) ReadFrame() (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.path, Err: audio.ErrDeviceClosed}
	case !s.open:
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.path, Err: audio.ErrNotOpen}
	case s.finished:
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.path, Err: audio.ErrDeviceDisconnected}
	}

	n, err := s.fill()
	if err != nil {
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.path, Err: err}
	}
	if n == 0 {
		s.finished = true
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.path, Err: audio.ErrDeviceDisconnected}
	}

	samples := make([]int16, audio.FrameSamples)
	for i := range n {
		samples[i] = toInt16((s.buf[i][0] + s.buf[i][1]) / 2)
	}
	ts := time.Duration(s.frames) * audio.FrameDuration
	s.frames++

	if s.realtime {
		if wait := time.Until(s.started.Add(ts + audio.FrameDuration)); wait > 0 {
			time.Sleep(wait)
		}
	}
	return audio.Frame{Data: audio.FromSamples(samples), SampleRate: audio.SampleRate, Timestamp: ts}, nil
}

// fill reads up to one frame of samples into s.buf, rewinding once when
// looping. Caller must hold s.mu.
func (s *Source) fill() (int, error) {
	n, _ := s.stream.Stream(s.buf)
	if err := s.stream.Err(); err != nil {
		return n, err
	}
	if n == len(s.buf) || !s.loop {
		return n, nil
	}
	if err := s.decoder.Seek(0); err != nil {
		return n, fmt.Errorf("rewind: %w", err)
	}
	m, _ := s.stream.Stream(s.buf[n:])
	return n + m, s.stream.Err()
}

// Close releases the underlying file. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	s.closed = true
	err := s.decoder.Close()
	if ferr := s.file.Close(); !errors.Is(ferr, os.ErrClosed) {
		err = errors.Join(err, ferr)
	}
	if err != nil {
		return &audio.DeviceError{Op: "close", Device: s.path, Err: err}
	}
	return nil
}

func toInt16(v float64) int16 {
	v = math.Round(v * 32767)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
