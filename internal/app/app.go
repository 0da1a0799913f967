// Package app wires the parley subsystems into a running application.
//
// The App struct owns the full lifecycle: New assembles the segmenter, the
// transcription failover chain and the session controller from the
// providers, Run executes the listen → correct → print → reply loop, and
// Shutdown tears everything down in order.
//
// For testing, pass mock providers and inject collaborators via functional
// options (WithResponder, WithOutput, etc.).
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/MrWong99/parley/internal/chat"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/internal/segment"
	"github.com/MrWong99/parley/internal/session"
	"github.com/MrWong99/parley/internal/vocab"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// NamedTranscriber is a transcription backend and the name it is known by in
// logs, metrics and circuit breakers.
type NamedTranscriber struct {
	Name string
	stt.Transcriber
}

// Providers holds the collaborators built from the config registry by
// main.go. Exactly one of Frame and Window is used, chosen by vad.kind.
type Providers struct {
	Source       audio.Source
	Frame        vad.FrameClassifier
	Window       vad.WindowClassifier
	Transcribers []NamedTranscriber
}

// Responder answers a recognised utterance. [*chat.Client] implements it.
type Responder interface {
	Reply(ctx context.Context, text string) (string, error)
}

// App owns all subsystem lifetimes and runs the conversation loop.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics   *observe.Metrics
	log       *slog.Logger
	out       io.Writer
	responder Responder
	once      bool

	transcription *resilience.TranscriberFallback
	controller    *session.Controller
	vocab         *vocab.Corrector

	mu         sync.Mutex
	quitPhrase string

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithResponder sets the collaborator that answers each utterance. Without
// one, utterances are only printed.
func WithResponder(r Responder) Option {
	return func(a *App) { a.responder = r }
}

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithOutput sets where the conversation is printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithOnce makes Run return after the first answered utterance.
func WithOnce(once bool) Option {
	return func(a *App) { a.once = once }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg and the providers built for it.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		providers:  providers,
		log:        slog.Default(),
		out:        os.Stdout,
		quitPhrase: cfg.Chat.QuitPhrase,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	seg, err := a.buildSegmenter()
	if err != nil {
		return nil, fmt.Errorf("app: build segmenter: %w", err)
	}

	a.transcription, err = a.buildTranscription()
	if err != nil {
		return nil, fmt.Errorf("app: build transcription: %w", err)
	}

	if terms := cfg.Transcription.Vocabulary; len(terms) > 0 {
		a.vocab = vocab.New(terms)
	}

	a.controller, err = session.New(providers.Source, seg, a.transcription,
		session.WithMetrics(a.metrics),
		session.WithLogger(a.log),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return a, nil
}

func (a *App) buildSegmenter() (segment.Segmenter, error) {
	v := a.cfg.VAD
	switch v.Kind {
	case vad.KindWindow:
		return segment.NewWindow(a.providers.Window, segment.WindowConfig{
			Chunk:     v.Chunk,
			MaxBuffer: v.MaxBuffer,
		})
	case vad.KindFrame, "":
		return segment.NewFrame(a.providers.Frame, segment.Config{
			Padding:       v.Padding,
			FrameDuration: audio.FrameDuration,
			Ratio:         v.Ratio,
		})
	default:
		return nil, fmt.Errorf("unknown vad kind %q", v.Kind)
	}
}

// buildTranscription instruments every backend and chains them behind
// circuit breakers in configured order.
func (a *App) buildTranscription() (*resilience.TranscriberFallback, error) {
	ts := a.providers.Transcribers
	if len(ts) == 0 {
		return nil, errors.New("no transcription backend")
	}

	cb := a.cfg.Transcription.CircuitBreaker
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			HalfOpenMax:  cb.HalfOpenMax,
			OnStateChange: func(name string, from, to resilience.State) {
				a.log.Warn("transcription backend circuit changed",
					"backend", name, "from", from.String(), "to", to.String())
				a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}

	var fb *resilience.TranscriberFallback
	for i, t := range ts {
		if t.Transcriber == nil {
			return nil, fmt.Errorf("transcriber %q is nil", t.Name)
		}
		if c, ok := t.Transcriber.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
		inst := observe.InstrumentTranscriber(t.Transcriber, t.Name, a.metrics)
		if i == 0 {
			fb = resilience.NewTranscriberFallback(inst, t.Name, fbCfg)
			continue
		}
		fb.AddFallback(t.Name, inst)
	}
	return fb, nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Controller returns the session controller, e.g. to stop a session from
// another goroutine.
func (a *App) Controller() *session.Controller { return a.controller }

// Transcription returns the failover chain, e.g. for readiness checks.
func (a *App) Transcription() *resilience.TranscriberFallback { return a.transcription }

// SetQuitPhrase replaces the phrase that ends Run. Empty restores the
// default.
func (a *App) SetQuitPhrase(phrase string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quitPhrase = phrase
}

func (a *App) currentQuitPhrase() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quitPhrase
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens for utterances and answers them until the quit phrase is
// heard, a session is stopped without an utterance, or ctx is done. Those
// endings return nil; a fatal session error is returned.
func (a *App) Run(ctx context.Context) error {
	for {
		utt, ok, err := a.controller.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("app: listen: %w", err)
		}
		if !ok {
			a.log.Info("listening ended without an utterance")
			return nil
		}

		utt.Text = a.correct(utt)
		fmt.Fprintln(a.out, "User:", utt.Text)
		if chat.IsQuit(utt.Text, a.currentQuitPhrase()) {
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		}

		if a.responder != nil {
			a.answer(ctx, utt)
		}
		if a.once {
			return nil
		}
	}
}

// correct applies the vocabulary to the recognised text.
func (a *App) correct(utt session.Utterance) string {
	if a.vocab == nil {
		return utt.Text
	}
	text, fixes := a.vocab.Correct(utt.Text)
	for _, f := range fixes {
		a.log.Debug("vocabulary correction",
			"segment_id", utt.SegmentID, "heard", f.Original, "corrected", f.Corrected, "score", f.Score)
	}
	return text
}

func (a *App) answer(ctx context.Context, utt session.Utterance) {
	reply, err := a.responder.Reply(ctx, utt.Text)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Warn("no reply", "segment_id", utt.SegmentID, "err", err)
		}
		return
	}
	fmt.Fprintf(a.out, "\nBot: %s\n\n", reply)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops a running session and releases backend resources. It is
// safe to call more than once.
func (a *App) Shutdown(_ context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.controller.Stop()
		for _, c := range a.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
