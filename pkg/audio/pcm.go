package audio

import (
	"encoding/binary"
	"math"
)

// Samples decodes little-endian int16 PCM. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// FromSamples encodes int16 samples as little-endian PCM.
func FromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square amplitude of int16 PCM in sample units
// (0..32768). Empty input yields 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose signs
// differ.
func ZeroCrossingRate(pcm []byte) float64 {
	n := len(pcm) / 2
	if n < 2 {
		return 0
	}
	var crossings int
	prev := int16(binary.LittleEndian.Uint16(pcm))
	for i := 1; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if (prev >= 0) != (s >= 0) {
			crossings++
		}
		prev = s
	}
	return float64(crossings) / float64(n-1)
}

// DownmixToMono averages interleaved channels of int16 PCM into a single
// channel. Mono input is returned unchanged.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	stride := channels * 2
	frames := len(pcm) / stride
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for c := range channels {
			off := i*stride + c*2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[off:])))
		}
		avg := sum / int32(channels)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(avg)))
	}
	return out
}

// ResampleMono resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If the rates match or either is non-positive the input is
// returned unchanged.
func ResampleMono(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	src := Samples(pcm)
	dstN := int(int64(len(src)) * int64(dstRate) / int64(srcRate))
	if dstN == 0 {
		return nil
	}
	dst := make([]int16, dstN)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dst {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := src[idx]
		s1 := s0
		if idx+1 < len(src) {
			s1 = src[idx+1]
		}
		dst[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return FromSamples(dst)
}

// Conform converts int16 PCM with the given layout into the capture format
// (mono at [SampleRate]). Downmixing happens before resampling.
func Conform(pcm []byte, sampleRate, channels int) []byte {
	return ResampleMono(DownmixToMono(pcm, channels), sampleRate, SampleRate)
}

func clamp16(v int32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
