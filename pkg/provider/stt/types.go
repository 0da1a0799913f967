package stt

import (
	"errors"
	"time"
)

// ErrNotUnderstood is returned when a backend processed the audio but could
// not recognise any speech in it.
var ErrNotUnderstood = errors.New("stt: speech not understood")

// Result is the outcome of a successful transcription.
type Result struct {
	// Text is the transcribed speech, verbatim as the backend returned it.
	Text string

	// Language is the language tag the text was recognised in. Empty when
	// the backend does not report one.
	Language string

	// Provider names the backend that produced the text.
	Provider string

	// Latency is how long the backend call took.
	Latency time.Duration
}

// BackendError reports that a transcription backend failed for reasons other
// than unintelligible speech.
type BackendError struct {
	// Provider names the failing backend.
	Provider string

	Err error
}

func (e *BackendError) Error() string {
	return "stt: " + e.Provider + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err as a [*BackendError] unless it already is one.
func NewBackendError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Provider: provider, Err: err}
}

// IsBackendError reports whether err is or wraps a [*BackendError].
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// KeywordBoost is a vocabulary hint for backends that support keyword
// boosting.
type KeywordBoost struct {
	// Keyword is the text to boost.
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
