package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/stt/mock"
)

func TestInstrumentTranscriber(t *testing.T) {
	exp := newTestTracerProvider(t)
	m, reader := newTestMetrics(t)

	inner := &mock.Transcriber{Responses: []mock.Response{
		{Result: stt.Result{Text: "hello", Language: "en-US"}},
		{Err: stt.ErrNotUnderstood},
		{Err: &stt.BackendError{Provider: "deepgram", Err: errors.New("502")}},
	}}
	tr := InstrumentTranscriber(inner, "deepgram", m)
	seg := audio.Segment{ID: "seg-1", PCM: make([]byte, audio.FrameBytes), SampleRate: audio.SampleRate}
	ctx := context.Background()

	if res, err := tr.Transcribe(ctx, seg); err != nil || res.Text != "hello" {
		t.Fatalf("first call = %+v, %v", res, err)
	}
	if _, err := tr.Transcribe(ctx, seg); !errors.Is(err, stt.ErrNotUnderstood) {
		t.Fatalf("second call err = %v, want ErrNotUnderstood passed through", err)
	}
	if _, err := tr.Transcribe(ctx, seg); !stt.IsBackendError(err) {
		t.Fatalf("third call err = %v, want BackendError passed through", err)
	}

	rm := collect(t, reader)
	for status, want := range map[string]int64{"ok": 1, "not_understood": 1, "error": 1} {
		if got := sumValue(t, rm, "parley.provider.requests", "status", status); got != want {
			t.Errorf("requests{status=%s} = %d, want %d", status, got, want)
		}
	}
	if got := sumValue(t, rm, "parley.provider.errors", "provider", "deepgram"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}

	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("recorded %d spans, want 3", len(spans))
	}
	wantCodes := []codes.Code{codes.Unset, codes.Unset, codes.Error}
	for i, s := range spans {
		if s.Name != "stt.transcribe" {
			t.Errorf("span %d name = %q", i, s.Name)
		}
		if s.Status.Code != wantCodes[i] {
			t.Errorf("span %d status = %v, want %v", i, s.Status.Code, wantCodes[i])
		}
	}
}
