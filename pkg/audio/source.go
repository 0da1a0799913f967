package audio

import (
	"context"
	"errors"
)

var (
	// ErrDeviceClosed is returned by ReadFrame after Close.
	ErrDeviceClosed = errors.New("audio: device closed")

	// ErrDeviceDisconnected is returned when the capture device stops
	// delivering audio while open.
	ErrDeviceDisconnected = errors.New("audio: device disconnected")

	// ErrNotOpen is returned by ReadFrame before Open.
	ErrNotOpen = errors.New("audio: device not open")
)

// DeviceError describes a failure of the capture device: it could not be
// opened, disappeared mid-capture, or was read after close.
type DeviceError struct {
	// Op is the operation that failed ("open", "read", "close").
	Op string

	// Device names the capture device, if known.
	Device string

	Err error
}

func (e *DeviceError) Error() string {
	if e.Device == "" {
		return "audio: " + e.Op + ": " + e.Err.Error()
	}
	return "audio: " + e.Op + " " + e.Device + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err is or wraps a [*DeviceError].
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// Source is a blocking producer of fixed-size PCM frames.
//
// A Source is opened once per listening session and closed on every exit path
// of that session. ReadFrame blocks for roughly one frame duration and
// returns exactly one frame (FrameBytes bytes at SampleRate). Implementations
// must bound ReadFrame so that a vanished device surfaces as an error rather
// than an indefinite block.
//
// ReadFrame and Close may be called from different goroutines; all other
// calls come from a single goroutine.
type Source interface {
	// Open acquires the capture device.
	Open(ctx context.Context) error

	// ReadFrame returns the next frame of audio.
	ReadFrame() (Frame, error)

	// Close releases the device. It is safe to call more than once.
	Close() error
}
