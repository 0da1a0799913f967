// Package mock provides test doubles for the stt package interfaces.
//
// Use Transcriber to script a sequence of transcription outcomes and inspect
// which segments were submitted. Use Recognizer to script per-language
// recognition outcomes.
//
// Example:
//
//	tr := &mock.Transcriber{Responses: []mock.Response{
//	    {Err: stt.ErrNotUnderstood},
//	    {Result: stt.Result{Text: "hello"}},
//	}}
//	res, err := tr.Transcribe(ctx, seg)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// Response is one scripted transcription outcome.
type Response struct {
	Result stt.Result
	Err    error

	// Delay is slept (honouring ctx) before the response is returned.
	Delay time.Duration
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Responses are returned by successive Transcribe calls. Once exhausted,
	// Default is returned.
	Responses []Response

	// Default is returned after Responses is exhausted.
	Default Response

	// Segments records every segment passed to Transcribe, in order.
	Segments []audio.Segment
}

// Transcribe records the call and returns the next scripted response.
func (t *Transcriber) Transcribe(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	t.mu.Lock()
	n := len(t.Segments)
	t.Segments = append(t.Segments, seg)
	resp := t.Default
	if n < len(t.Responses) {
		resp = t.Responses[n]
	}
	t.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		}
	}
	return resp.Result, resp.Err
}

// Calls returns the number of Transcribe calls so far. Thread-safe.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Segments)
}

var _ stt.Transcriber = (*Transcriber)(nil)

// RecognizeCall records a single invocation of Recognizer.Recognize.
type RecognizeCall struct {
	SegmentID string
	Language  string
}

// Outcome is a scripted recognition result.
type Outcome struct {
	Text string
	Err  error
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// ByLanguage maps a language tag to its outcome. Languages missing from
	// the map yield stt.ErrNotUnderstood.
	ByLanguage map[string]Outcome

	// Calls records every call to Recognize in order.
	Calls []RecognizeCall
}

// Recognize records the call and returns the outcome for language.
func (r *Recognizer) Recognize(_ context.Context, seg audio.Segment, language string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RecognizeCall{SegmentID: seg.ID, Language: language})
	out, ok := r.ByLanguage[language]
	if !ok {
		return "", stt.ErrNotUnderstood
	}
	return out.Text, out.Err
}

// Name implements stt.Recognizer.
func (r *Recognizer) Name() string {
	if r.NameValue == "" {
		return "mock"
	}
	return r.NameValue
}

// Languages returns the languages tried so far, in order. Thread-safe.
func (r *Recognizer) Languages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Language
	}
	return out
}

var _ stt.Recognizer = (*Recognizer)(nil)
