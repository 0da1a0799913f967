// Package observe provides observability primitives for parley:
// OpenTelemetry metrics and tracing, trace-aware structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so they can be scraped from /metrics.
// [DefaultMetrics] returns a package-level instance; tests should use
// [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all parley metrics.
const meterName = "github.com/MrWong99/parley"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types are safe for concurrent use.
type Metrics struct {
	// STTDuration tracks transcription latency. Use with attribute
	// "provider".
	STTDuration metric.Float64Histogram

	// ChatDuration tracks chat collaborator round-trip latency.
	ChatDuration metric.Float64Histogram

	// SegmentDuration tracks the audio length of emitted segments. Use with
	// attribute "segmenter" ("frame" or "window").
	SegmentDuration metric.Float64Histogram

	// SegmentsEmitted counts segments handed to transcription.
	SegmentsEmitted metric.Int64Counter

	// NotUnderstood counts segments no backend could make sense of.
	NotUnderstood metric.Int64Counter

	// ProviderRequests counts provider calls. Use with attributes
	// "provider", "kind" and "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes
	// "provider" and "kind".
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes "name" and "state".
	BreakerTransitions metric.Int64Counter

	// Sessions counts finished listen sessions. Use with attribute
	// "outcome" ("utterance", "stopped", "error").
	Sessions metric.Int64Counter

	// ActiveSessions tracks listen sessions in progress.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes "method" and "path".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// speechBuckets defines histogram bucket boundaries (in seconds) for
// utterance lengths.
var speechBuckets = []float64{
	0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("parley.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChatDuration, err = m.Float64Histogram("parley.chat.duration",
		metric.WithDescription("Latency of the chat collaborator."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("parley.segment.duration",
		metric.WithDescription("Audio length of emitted speech segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(speechBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SegmentsEmitted, err = m.Int64Counter("parley.segments.emitted",
		metric.WithDescription("Total speech segments emitted by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.NotUnderstood, err = m.Int64Counter("parley.stt.not_understood",
		metric.WithDescription("Total segments that produced no recognisable speech."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("parley.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("parley.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("parley.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes by breaker and new state."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("parley.sessions",
		metric.WithDescription("Total finished listen sessions by outcome."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("parley.active_sessions",
		metric.WithDescription("Number of listen sessions in progress."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider call with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records one provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSegment records an emitted segment and its audio length.
func (m *Metrics) RecordSegment(ctx context.Context, segmenter string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("segmenter", segmenter))
	m.SegmentsEmitted.Add(ctx, 1, attrs)
	m.SegmentDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordTranscription records the latency of one transcription call.
func (m *Metrics) RecordTranscription(ctx context.Context, provider string, d time.Duration) {
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordSession records a finished listen session.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	m.Sessions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordBreakerTransition records a circuit breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("name", name),
			attribute.String("state", state),
		),
	)
}
