package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// Transcriber wraps an [stt.Transcriber] with a span per call and the
// transcription metrics. Errors pass through unchanged.
type Transcriber struct {
	next    stt.Transcriber
	name    string
	metrics *Metrics
}

var _ stt.Transcriber = (*Transcriber)(nil)

// InstrumentTranscriber wraps next. name labels spans and metrics; m may be
// nil, in which case [DefaultMetrics] is used.
func InstrumentTranscriber(next stt.Transcriber, name string, m *Metrics) *Transcriber {
	if m == nil {
		m = DefaultMetrics()
	}
	return &Transcriber{next: next, name: name, metrics: m}
}

// Transcribe implements [stt.Transcriber].
func (t *Transcriber) Transcribe(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	ctx, span := StartSpan(ctx, "stt.transcribe",
		trace.WithAttributes(
			attribute.String("stt.provider", t.name),
			attribute.String("segment.id", seg.ID),
			attribute.Int64("segment.duration_ms", seg.Duration().Milliseconds()),
		),
	)

	start := time.Now()
	res, err := t.next.Transcribe(ctx, seg)
	t.metrics.RecordTranscription(ctx, t.name, time.Since(start))

	status, spanErr := "ok", err
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("stt.language", res.Language))
	case errors.Is(err, stt.ErrNotUnderstood):
		// An answer, not a failure.
		status, spanErr = "not_understood", nil
		t.metrics.NotUnderstood.Add(ctx, 1)
	case errors.Is(err, context.Canceled):
		status = "cancelled"
	default:
		status = "error"
		t.metrics.RecordProviderError(ctx, t.name, "stt")
	}
	t.metrics.RecordProviderRequest(ctx, t.name, "stt", status)
	span.SetAttributes(attribute.String("stt.status", status))
	EndSpan(span, spanErr)
	return res, err
}
