package wavfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

func writeWAV(t *testing.T, samples []int16, rate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(audio.FromSamples(samples), rate, channels), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSource_ReadsFramesThenDisconnects(t *testing.T) {
	// 50 ms of 16 kHz mono: two full frames and one partial.
	samples := make([]int16, 800)
	for i := range samples {
		samples[i] = 1000
	}
	src := New(writeWAV(t, samples, 16000, 1))
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	for i := range 3 {
		f, err := src.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(f.Data) != audio.FrameBytes {
			t.Fatalf("frame %d len = %d, want %d", i, len(f.Data), audio.FrameBytes)
		}
		if want := audio.FrameDuration * time.Duration(i); f.Timestamp != want {
			t.Errorf("frame %d timestamp = %v, want %v", i, f.Timestamp, want)
		}
	}

	_, err := src.ReadFrame()
	if !errors.Is(err, audio.ErrDeviceDisconnected) {
		t.Fatalf("err = %v, want ErrDeviceDisconnected", err)
	}
	if !audio.IsDeviceError(err) {
		t.Errorf("err is not a DeviceError: %T", err)
	}
}

func TestSource_ResamplesStereo(t *testing.T) {
	// 20 ms of 32 kHz stereo.
	samples := make([]int16, 640*2)
	src := New(writeWAV(t, samples, 32000, 2))
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	f, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.SampleRate != audio.SampleRate {
		t.Errorf("SampleRate = %d, want %d", f.SampleRate, audio.SampleRate)
	}
}

func TestSource_ReadAfterClose(t *testing.T) {
	src := New(writeWAV(t, make([]int16, 320), 16000, 1))
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := src.ReadFrame(); !errors.Is(err, audio.ErrDeviceClosed) {
		t.Fatalf("err = %v, want ErrDeviceClosed", err)
	}
}

func TestSource_OpenMissingFile(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "missing.wav"))
	err := src.Open(context.Background())
	if !audio.IsDeviceError(err) {
		t.Fatalf("err = %v, want DeviceError", err)
	}
}
