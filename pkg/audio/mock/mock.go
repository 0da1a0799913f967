// Package mock provides a scripted in-memory [audio.Source] for unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and it exposes exported fields that the test
// can set to control behaviour.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Frames: [][]byte{silence, speech, speech},
//	    Tail:   silence, // repeated forever once Frames is exhausted
//	}
//	err := src.Open(ctx)
//	frame, err := src.ReadFrame()
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// Frames are returned by ReadFrame in order.
	Frames [][]byte

	// Tail, when non-nil, is returned forever after Frames is exhausted.
	Tail []byte

	// EndErr is returned (wrapped in an [audio.DeviceError]) once Frames is
	// exhausted and Tail is nil. Defaults to [audio.ErrDeviceDisconnected].
	EndErr error

	// OpenErr is returned by Open when non-nil.
	OpenErr error

	// CloseErr is returned by Close.
	CloseErr error

	// FrameDelay is slept before each ReadFrame returns, simulating real-time
	// capture.
	FrameDelay time.Duration

	// OnRead, if set, is called with the zero-based read index before each
	// frame is returned. It runs without the mock's lock held.
	OnRead func(n int)

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// CallCountReadFrame records how many times ReadFrame was called.
	CallCountReadFrame int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	open bool
	next int
}

var _ audio.Source = (*Source)(nil)

// Open implements [audio.Source].
func (s *Source) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountOpen++
	if s.OpenErr != nil {
		return &audio.DeviceError{Op: "open", Device: "mock", Err: s.OpenErr}
	}
	s.open = true
	return nil
}

// ReadFrame implements [audio.Source].
func (s *Source) ReadFrame() (audio.Frame, error) {
	s.mu.Lock()
	s.CallCountReadFrame++
	if !s.open {
		closed := s.CallCountClose > 0
		s.mu.Unlock()
		if closed {
			return audio.Frame{}, &audio.DeviceError{Op: "read", Device: "mock", Err: audio.ErrDeviceClosed}
		}
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: "mock", Err: audio.ErrNotOpen}
	}

	idx := s.next
	var data []byte
	switch {
	case idx < len(s.Frames):
		data = s.Frames[idx]
	case s.Tail != nil:
		data = s.Tail
	default:
		endErr := s.EndErr
		s.mu.Unlock()
		if endErr == nil {
			endErr = audio.ErrDeviceDisconnected
		}
		return audio.Frame{}, &audio.DeviceError{Op: "read", Device: "mock", Err: endErr}
	}
	s.next++
	delay := s.FrameDelay
	onRead := s.OnRead
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if onRead != nil {
		onRead(idx)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return audio.Frame{
		Data:       buf,
		SampleRate: audio.SampleRate,
		Timestamp:  time.Duration(idx) * audio.FrameDuration,
	}, nil
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.open = false
	return s.CloseErr
}

// IsOpen reports whether the source is currently open.
func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Reads returns how many frames have been delivered so far.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Tone returns one frame of a square wave with the given amplitude, a handy
// "speech" frame for energy-based classifiers.
func Tone(amplitude int16) []byte {
	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		// 400 Hz at 16 kHz: 20 samples per half period.
		if (i/20)%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return audio.FromSamples(samples)
}

// Silence returns one frame of digital silence.
func Silence() []byte { return make([]byte, audio.FrameBytes) }

// Script builds a frame list from a compact pattern where 'v' is a voiced
// frame (Tone(8000)) and '.' is silence. Other characters panic.
func Script(pattern string) [][]byte {
	out := make([][]byte, 0, len(pattern))
	for i, c := range pattern {
		switch c {
		case 'v':
			out = append(out, Tone(8000))
		case '.':
			out = append(out, Silence())
		default:
			panic(fmt.Sprintf("mock: bad script character %q at %d", c, i))
		}
	}
	return out
}
