// Package mock provides test doubles for the vad package interfaces.
//
// Use FrameClassifier to script per-frame speech verdicts and inspect the
// frames that were submitted. Use WindowClassifier to script the speech
// regions returned for successive buffers.
//
// Example:
//
//	cls := &mock.FrameClassifier{Verdicts: []bool{false, true, true}}
//	speech, _ := cls.IsSpeech(frame, 16000) // false
package mock

import (
	"sync"

	"github.com/MrWong99/parley/pkg/provider/vad"
)

// IsSpeechCall records a single invocation of FrameClassifier.IsSpeech.
type IsSpeechCall struct {
	// Frame is a copy of the bytes passed to IsSpeech.
	Frame []byte

	SampleRate int
}

// FrameClassifier is a mock implementation of vad.FrameClassifier.
type FrameClassifier struct {
	mu sync.Mutex

	// Verdicts are returned by successive IsSpeech calls. Once exhausted,
	// Default is returned.
	Verdicts []bool

	// Default is returned after Verdicts is exhausted.
	Default bool

	// Func, if set, overrides Verdicts and Default.
	Func func(frame []byte) bool

	// Err, if non-nil, is returned by every IsSpeech call.
	Err error

	// IsSpeechCalls records every call to IsSpeech in order.
	IsSpeechCalls []IsSpeechCall
}

// IsSpeech records the call and returns the next scripted verdict.
func (c *FrameClassifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	n := len(c.IsSpeechCalls)
	c.IsSpeechCalls = append(c.IsSpeechCalls, IsSpeechCall{Frame: cp, SampleRate: sampleRate})
	if c.Err != nil {
		return false, c.Err
	}
	if c.Func != nil {
		return c.Func(frame), nil
	}
	if n < len(c.Verdicts) {
		return c.Verdicts[n], nil
	}
	return c.Default, nil
}

// Calls returns the number of IsSpeech calls so far. Thread-safe.
func (c *FrameClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.IsSpeechCalls)
}

var _ vad.FrameClassifier = (*FrameClassifier)(nil)

// SpeechTimestampsCall records a single invocation of
// WindowClassifier.SpeechTimestamps.
type SpeechTimestampsCall struct {
	// Len is the byte length of the analysed buffer.
	Len int

	SampleRate int
}

// WindowClassifier is a mock implementation of vad.WindowClassifier.
type WindowClassifier struct {
	mu sync.Mutex

	// Results are returned by successive SpeechTimestamps calls. Once
	// exhausted, nil (no speech) is returned.
	Results [][]vad.Range

	// Func, if set, overrides Results.
	Func func(pcm []byte) []vad.Range

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every call in order.
	Calls []SpeechTimestampsCall
}

// SpeechTimestamps records the call and returns the next scripted result.
func (c *WindowClassifier) SpeechTimestamps(pcm []byte, sampleRate int) ([]vad.Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.Calls)
	c.Calls = append(c.Calls, SpeechTimestampsCall{Len: len(pcm), SampleRate: sampleRate})
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Func != nil {
		return c.Func(pcm), nil
	}
	if n < len(c.Results) {
		return c.Results[n], nil
	}
	return nil, nil
}

var _ vad.WindowClassifier = (*WindowClassifier)(nil)
