package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestSamplesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 1234}
	got := Samples(FromSamples(in))
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], in[i])
		}
	}
}

func TestSamples_OddTrailingByte(t *testing.T) {
	got := Samples([]byte{0x01, 0x00, 0xFF})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("Samples = %v, want [1]", got)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []int16{0, 0, 0, 0}, 0},
		{"constant", []int16{100, -100, 100, -100}, 100},
		{"full scale", []int16{math.MinInt16, math.MinInt16}, 32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(FromSamples(tt.samples))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZeroCrossingRate(t *testing.T) {
	alternating := FromSamples([]int16{1, -1, 1, -1, 1})
	if got := ZeroCrossingRate(alternating); got != 1 {
		t.Errorf("alternating ZCR = %v, want 1", got)
	}
	flat := FromSamples([]int16{5, 5, 5, 5})
	if got := ZeroCrossingRate(flat); got != 0 {
		t.Errorf("flat ZCR = %v, want 0", got)
	}
}

func TestDownmixToMono(t *testing.T) {
	// L=100 R=300 → 200; L=-32768 R=-32768 → -32768
	stereo := FromSamples([]int16{100, 300, math.MinInt16, math.MinInt16})
	got := Samples(DownmixToMono(stereo, 2))
	want := []int16{200, math.MinInt16}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	mono := FromSamples([]int16{1, 2, 3})
	if out := DownmixToMono(mono, 1); &out[0] != &mono[0] {
		t.Error("mono input should be returned unchanged")
	}
}

func TestResampleMono(t *testing.T) {
	in := make([]int16, 480) // 10 ms at 48 kHz
	for i := range in {
		in[i] = 1000
	}
	out := Samples(ResampleMono(FromSamples(in), 48000, 16000))
	if len(out) != 160 {
		t.Fatalf("len = %d, want 160", len(out))
	}
	for i, s := range out {
		if s != 1000 {
			t.Fatalf("sample[%d] = %d, want 1000", i, s)
		}
	}

	same := FromSamples(in)
	if got := ResampleMono(same, 16000, 16000); len(got) != len(same) {
		t.Errorf("same-rate resample changed length: %d", len(got))
	}
	if got := ResampleMono(same, 0, 16000); len(got) != len(same) {
		t.Errorf("zero-rate resample changed length: %d", len(got))
	}
}

func TestConform(t *testing.T) {
	// 20 ms stereo at 32 kHz → 20 ms mono at 16 kHz.
	stereo := make([]byte, 640*2*2)
	got := Conform(stereo, 32000, 2)
	if len(got) != FrameBytes {
		t.Errorf("len = %d, want %d", len(got), FrameBytes)
	}
}

func TestPCMDuration(t *testing.T) {
	if got := PCMDuration(FrameBytes, SampleRate); got != FrameDuration {
		t.Errorf("PCMDuration(FrameBytes) = %v, want %v", got, FrameDuration)
	}
	if got := PCMDuration(100, 0); got != 0 {
		t.Errorf("PCMDuration with zero rate = %v, want 0", got)
	}
	if got := PCMBytes(3*time.Second, SampleRate); got != 96000 {
		t.Errorf("PCMBytes(3s) = %d, want 96000", got)
	}
	if got := PCMBytes(FrameDuration, SampleRate); got != FrameBytes {
		t.Errorf("PCMBytes(frame) = %d, want %d", got, FrameBytes)
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := FromSamples([]int16{1, 2, 3, 4})
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("bad RIFF header: %q", wav[0:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestDeviceError(t *testing.T) {
	err := error(&DeviceError{Op: "read", Device: "USB Mic", Err: ErrDeviceDisconnected})
	if got, want := err.Error(), "audio: read USB Mic: audio: device disconnected"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsDeviceError(err) {
		t.Error("IsDeviceError = false, want true")
	}
	if IsDeviceError(ErrDeviceClosed) {
		t.Error("IsDeviceError(sentinel) = true, want false")
	}
}
