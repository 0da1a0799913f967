// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const nativeProviderName = "whisper-native"

var _ stt.Transcriber = (*Native)(nil)

// Native implements [stt.Transcriber] by running whisper.cpp in-process. The
// model is loaded once and shared; every call gets its own inference
// context, so Transcribe is safe for concurrent use.
type Native struct {
	model    whisperlib.Model
	language string
	threads  uint

	closeOnce sync.Once
	closeErr  error
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the language passed to the model (e.g. "en").
// Defaults to "auto", which lets whisper detect it.
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeThreads sets the number of CPU threads used per inference. Zero
// keeps the library default.
func WithNativeThreads(threads uint) NativeOption {
	return func(n *Native) { n.threads = threads }
}

// NewNative loads the whisper.cpp model at modelPath. The caller must call
// Close when the transcriber is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:    model,
		language: "auto",
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the model. It is safe to call more than once.
func (n *Native) Close() error {
	n.closeOnce.Do(func() {
		if n.model != nil {
			n.closeErr = n.model.Close()
		}
	})
	return n.closeErr
}

// Transcribe implements [stt.Transcriber]. The whole segment is decoded in
// one synchronous inference and the text is returned as the model produced
// it. There is no language fallback.
func (n *Native) Transcribe(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	if seg.Empty() {
		return stt.Result{}, stt.ErrNotUnderstood
	}

	pcm := seg.PCM
	if seg.SampleRate != 0 && seg.SampleRate != audio.SampleRate {
		pcm = audio.ResampleMono(pcm, seg.SampleRate, audio.SampleRate)
	}

	start := time.Now()
	text, lang, err := n.infer(pcmToFloat32(pcm))
	if err != nil {
		return stt.Result{}, stt.NewBackendError(nativeProviderName, err)
	}
	if strings.TrimSpace(text) == "" {
		return stt.Result{}, stt.ErrNotUnderstood
	}
	return stt.Result{
		Text:     text,
		Language: lang,
		Provider: nativeProviderName,
		Latency:  time.Since(start),
	}, nil
}

// infer runs whisper.cpp over samples using a fresh context and returns the
// concatenated segment text with the detected language.
func (n *Native) infer(samples []float32) (string, string, error) {
	// Contexts are not thread-safe; the model is.
	wctx, err := n.model.NewContext()
	if err != nil {
		return "", "", fmt.Errorf("create context: %w", err)
	}

	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "err", err)
	}
	if n.threads > 0 {
		wctx.SetThreads(n.threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", "", fmt.Errorf("process audio: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("read segment: %w", err)
		}
		sb.WriteString(segment.Text)
	}

	lang := n.language
	if lang == "auto" {
		lang = wctx.DetectedLanguage()
	}
	return sb.String(), lang, nil
}
