package audio

import "time"

// Capture format used throughout parley: 16 kHz, mono, signed 16-bit
// little-endian PCM in 20 ms frames.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2

	FrameDuration = 20 * time.Millisecond
	FrameSamples  = SampleRate * int(FrameDuration/time.Millisecond) / 1000
	FrameBytes    = FrameSamples * BytesPerSample
)

// Frame is a fixed-duration block of mono PCM read from a [Source].
type Frame struct {
	// Data holds little-endian int16 samples.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Timestamp marks when this frame was captured, relative to the moment the
	// source was opened.
	Timestamp time.Duration
}

// Duration reports how much audio the frame carries.
func (f Frame) Duration() time.Duration {
	return PCMDuration(len(f.Data), f.SampleRate)
}

// Segment is a contiguous run of frames judged to contain one utterance.
// PCM is the byte-concatenation of the member frames in capture order.
type Segment struct {
	// ID uniquely identifies the segment within the process.
	ID string

	PCM        []byte
	SampleRate int

	// Start is the capture timestamp of the first member frame.
	Start time.Duration

	// Frames is the number of member frames.
	Frames int
}

// Duration reports the length of the segment audio.
func (s Segment) Duration() time.Duration {
	return PCMDuration(len(s.PCM), s.SampleRate)
}

// Empty reports whether the segment carries no audio.
func (s Segment) Empty() bool { return len(s.PCM) == 0 }

// PCMDuration converts a byte count of mono int16 PCM at sampleRate into a
// duration. It returns 0 for a non-positive sample rate.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// PCMBytes is the inverse of [PCMDuration]: the number of bytes of mono int16
// PCM at sampleRate that cover d. The result is always sample aligned.
func PCMBytes(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	samples := int(int64(d) * int64(sampleRate) / int64(time.Second))
	return samples * BytesPerSample
}
