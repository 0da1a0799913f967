// Package stt defines the interfaces for Speech-to-Text backends.
//
// The central abstraction is [Transcriber]: it turns one completed voice
// segment into text. Cloud services that accept a language hint are modelled
// one level lower as a [Recognizer]; the multilang package lifts a Recognizer
// into a Transcriber that retries with a secondary language. Local inference
// engines implement Transcriber directly.
//
// Transcribers distinguish two failure modes. [ErrNotUnderstood] means the
// backend worked but found no intelligible speech; callers discard the
// segment and keep listening. [*BackendError] means the backend itself failed
// (network, auth, service error); callers may log it, fail over to another
// backend, and keep listening.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/parley/pkg/audio"
)

// Transcriber converts a voice segment into text.
type Transcriber interface {
	// Transcribe returns the recognised text for seg. It returns
	// [ErrNotUnderstood] (possibly wrapped) when no speech could be
	// recognised, and a [*BackendError] when the backend failed.
	Transcribe(ctx context.Context, seg audio.Segment) (Result, error)
}

// Recognizer is a single-language recognition call against a cloud service.
type Recognizer interface {
	// Recognize transcribes seg assuming the BCP-47 language tag. It returns
	// [ErrNotUnderstood] when the service found no intelligible speech and a
	// [*BackendError] when the call failed.
	Recognize(ctx context.Context, seg audio.Segment, language string) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// TranscriberFunc adapts an ordinary function to [Transcriber].
type TranscriberFunc func(ctx context.Context, seg audio.Segment) (Result, error)

// Transcribe implements [Transcriber].
func (f TranscriberFunc) Transcribe(ctx context.Context, seg audio.Segment) (Result, error) {
	return f(ctx, seg)
}
