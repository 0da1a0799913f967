// Package multilang lifts a single-language cloud [stt.Recognizer] into an
// [stt.Transcriber] that retries once in a secondary language.
//
// The primary language is tried first. If the service reports that it could
// not understand the audio, the same segment is submitted once more with the
// secondary language. Backend failures are never retried here; they surface
// as [*stt.BackendError] so that a caller-level failover can react.
package multilang

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// Default languages tried by [New] when none are given.
const (
	DefaultPrimary   = "en-US"
	DefaultSecondary = "zh-CN"
)

// Transcriber implements [stt.Transcriber] over a [stt.Recognizer].
type Transcriber struct {
	rec       stt.Recognizer
	languages []string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a transcriber that tries primary, then secondary. An empty
// primary defaults to [DefaultPrimary]; an empty secondary disables the
// retry.
func New(rec stt.Recognizer, primary, secondary string) (*Transcriber, error) {
	if rec == nil {
		return nil, errors.New("multilang: recognizer is nil")
	}
	if primary == "" {
		primary = DefaultPrimary
	}
	langs := []string{primary}
	if secondary != "" && !strings.EqualFold(secondary, primary) {
		langs = append(langs, secondary)
	}
	return &Transcriber{rec: rec, languages: langs}, nil
}

// Languages returns the languages in the order they are tried.
func (t *Transcriber) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Transcribe implements [stt.Transcriber].
func (t *Transcriber) Transcribe(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	name := t.rec.Name()
	for i, lang := range t.languages {
		if err := ctx.Err(); err != nil {
			return stt.Result{}, err
		}
		start := time.Now()
		text, err := t.rec.Recognize(ctx, seg, lang)
		if err == nil && strings.TrimSpace(text) == "" {
			err = stt.ErrNotUnderstood
		}
		switch {
		case err == nil:
			return stt.Result{Text: text, Language: lang, Provider: name, Latency: time.Since(start)}, nil
		case errors.Is(err, stt.ErrNotUnderstood):
			if i+1 < len(t.languages) {
				slog.Debug("multilang: not understood, retrying",
					"provider", name, "language", lang, "next", t.languages[i+1], "segment_id", seg.ID)
			}
			continue
		case ctx.Err() != nil:
			return stt.Result{}, ctx.Err()
		default:
			return stt.Result{}, stt.NewBackendError(name, fmt.Errorf("recognize %s: %w", lang, err))
		}
	}
	return stt.Result{}, stt.ErrNotUnderstood
}
