// Package mic implements [audio.Source] on top of the system's default (or a
// named) capture device using miniaudio via github.com/gen2brain/malgo.
//
// The capture callback runs on a miniaudio thread and appends PCM to a bounded
// buffer; ReadFrame slices exactly one 20 ms frame off the front. When the
// device stops delivering audio for longer than the read timeout, ReadFrame
// reports [audio.ErrDeviceDisconnected].
package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/parley/pkg/audio"
)

const (
	defaultReadTimeout = 2 * time.Second

	// maxBuffered bounds how much unread audio is kept when the consumer falls
	// behind. Older audio is dropped first.
	maxBuffered = 5 * time.Second
)

// Option is a functional option for [New].
type Option func(*Source)

// WithDevice selects the first capture device whose name contains name
// (case-insensitive). An empty name selects the system default.
func WithDevice(name string) Option {
	return func(s *Source) { s.deviceName = name }
}

// WithReadTimeout overrides how long ReadFrame waits for audio before
// reporting the device as disconnected.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// Source captures 16 kHz mono int16 audio from a microphone.
type Source struct {
	deviceName  string
	readTimeout time.Duration

	mu      sync.Mutex
	buf     []byte
	open    bool
	closed  bool
	stopped bool // device stopped by the backend while open
	dropped int
	frames  int64
	notify  chan struct{}

	mctx   *malgo.AllocatedContext
	device *malgo.Device
	name   string
}

var _ audio.Source = (*Source)(nil)

// New creates an unopened microphone source.
func New(opts ...Option) *Source {
	s := &Source{readTimeout: defaultReadTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open initialises miniaudio and starts the capture device.
func (s *Source) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		return &audio.DeviceError{Op: "open", Device: s.deviceName, Err: err}
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = audio.Channels
	cfg.SampleRate = audio.SampleRate
	cfg.PeriodSizeInMilliseconds = uint32(audio.FrameDuration / time.Millisecond)

	name := "default"
	if s.deviceName != "" {
		info, err := findDevice(mctx, s.deviceName)
		if err != nil {
			_ = mctx.Uninit()
			mctx.Free()
			return &audio.DeviceError{Op: "open", Device: s.deviceName, Err: err}
		}
		cfg.Capture.DeviceID = info.ID.Pointer()
		name = info.Name()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { s.push(in) },
		Stop: s.onStop,
	}
	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return &audio.DeviceError{Op: "open", Device: name, Err: err}
	}

	s.mctx = mctx
	s.device = device
	s.name = name
	s.buf = s.buf[:0]
	s.frames = 0
	s.dropped = 0
	s.stopped = false
	s.closed = false
	s.notify = make(chan struct{}, 1)
	s.open = true

	if err := device.Start(); err != nil {
		s.releaseLocked()
		return &audio.DeviceError{Op: "open", Device: name, Err: err}
	}
	slog.Info("microphone opened", "device", name, "sample_rate", audio.SampleRate)
	return nil
}

// ReadFrame blocks until one full frame is buffered, the device is closed, or
// the read timeout elapses.
func (s *Source) ReadFrame() (audio.Frame, error) {
	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.name, Err: audio.ErrDeviceClosed}
		case !s.open:
			s.mu.Unlock()
			return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.deviceName, Err: audio.ErrNotOpen}
		case len(s.buf) >= audio.FrameBytes:
			data := make([]byte, audio.FrameBytes)
			copy(data, s.buf)
			s.buf = s.buf[audio.FrameBytes:]
			ts := time.Duration(s.frames) * audio.FrameDuration
			s.frames++
			s.mu.Unlock()
			return audio.Frame{Data: data, SampleRate: audio.SampleRate, Timestamp: ts}, nil
		case s.stopped:
			s.mu.Unlock()
			return audio.Frame{}, &audio.DeviceError{Op: "read", Device: s.name, Err: audio.ErrDeviceDisconnected}
		}
		notify := s.notify
		s.mu.Unlock()

		select {
		case <-notify:
		case <-timer.C:
			return audio.Frame{}, &audio.DeviceError{
				Op:     "read",
				Device: s.name,
				Err:    fmt.Errorf("no audio for %s: %w", s.readTimeout, audio.ErrDeviceDisconnected),
			}
		}
	}
}

// Close stops and releases the device. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	device, mctx := s.device, s.mctx
	s.device, s.mctx = nil, nil
	s.open = false
	dropped := s.dropped
	s.signal()
	s.mu.Unlock()

	// Stop and Uninit wait for the capture thread, which takes s.mu in push.
	var errs []error
	if device != nil {
		if err := device.Stop(); err != nil {
			errs = append(errs, err)
		}
		device.Uninit()
	}
	if mctx != nil {
		if err := mctx.Uninit(); err != nil {
			errs = append(errs, err)
		}
		mctx.Free()
	}
	if dropped > 0 {
		slog.Warn("microphone dropped unread audio", "device", s.name, "bytes", dropped)
	}
	if err := errors.Join(errs...); err != nil {
		return &audio.DeviceError{Op: "close", Device: s.name, Err: err}
	}
	return nil
}

// push is the miniaudio data callback.
func (s *Source) push(in []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.closed {
		return
	}
	s.buf = append(s.buf, in...)
	if limit := audio.PCMBytes(maxBuffered, audio.SampleRate); len(s.buf) > limit {
		over := len(s.buf) - limit
		over += over % audio.BytesPerSample
		s.dropped += over
		s.buf = s.buf[over:]
	}
	s.signal()
}

// onStop fires when miniaudio stops the device, either after Close or because
// the backend lost it.
func (s *Source) onStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open && !s.closed {
		s.stopped = true
		s.signal()
	}
}

// signal wakes a pending ReadFrame. Caller must hold s.mu.
func (s *Source) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// releaseLocked tears down a half-opened device. Caller must hold s.mu.
func (s *Source) releaseLocked() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.mctx != nil {
		_ = s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}
	s.open = false
}

func findDevice(mctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("enumerate capture devices: %w", err)
	}
	want := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no capture device matching %q", name)
}
