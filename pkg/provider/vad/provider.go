// Package vad defines the classifier interfaces for Voice Activity Detection
// backends.
//
// Two classifier shapes exist. A [FrameClassifier] makes a binary
// speech/non-speech decision for one short frame at a time (WebRTC-style
// energy detectors). A [WindowClassifier] scores a whole buffer of audio and
// returns the speech regions it found (Silero-style neural detectors). The
// segmenter selects its strategy from the classifier [Kind] at construction
// time.
//
// Classifiers are synchronous: every call returns immediately with a result,
// making them suitable for the capture loop. A classifier instance is used by
// one segmenter at a time and need not be safe for concurrent use unless the
// implementation says otherwise.
package vad

import "errors"

// ErrInvalidFrame is returned when a frame is empty, not sample aligned, or
// of a duration the classifier does not support.
var ErrInvalidFrame = errors.New("vad: invalid frame")

// FrameClassifier decides whether a single frame of PCM contains speech.
type FrameClassifier interface {
	// IsSpeech classifies one frame of little-endian int16 mono PCM at
	// sampleRate. Returns [ErrInvalidFrame] (wrapped) for malformed input.
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

// WindowClassifier locates speech regions inside a buffer of audio.
type WindowClassifier interface {
	// SpeechTimestamps returns the speech regions found in pcm, in ascending,
	// non-overlapping order. Offsets are relative to the start of pcm. An
	// empty result means no speech was found.
	SpeechTimestamps(pcm []byte, sampleRate int) ([]Range, error)
}
