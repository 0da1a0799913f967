package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// TranscriberFallback implements [stt.Transcriber] with failover across
// several backends, each behind its own circuit breaker. Only
// [*stt.BackendError] moves a segment on to the next backend;
// [stt.ErrNotUnderstood] is an answer and is returned as is.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a [TranscriberFallback] with primary as the
// preferred backend. cfg.ShouldFailover is ignored.
func NewTranscriberFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	cfg.ShouldFailover = stt.IsBackendError
	cfg.CircuitBreaker.IsFailure = stt.IsBackendError
	return &TranscriberFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional backend.
func (f *TranscriberFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Names returns the backend names in the order they are tried.
func (f *TranscriberFallback) Names() []string { return f.group.Names() }

// Available returns the backends whose breaker is not open, in the order
// they are tried.
func (f *TranscriberFallback) Available() []string {
	var names []string
	for _, name := range f.group.Names() {
		if f.group.Breaker(name).State() != StateOpen {
			names = append(names, name)
		}
	}
	return names
}

// Transcribe implements [stt.Transcriber]. When every backend fails the
// returned error is a [*stt.BackendError] wrapping [ErrAllFailed].
func (f *TranscriberFallback) Transcribe(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	res, err := ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (stt.Result, error) {
		return t.Transcribe(ctx, seg)
	})
	if errors.Is(err, ErrAllFailed) {
		return stt.Result{}, &stt.BackendError{Provider: "fallback", Err: err}
	}
	return res, err
}
