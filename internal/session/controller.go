// Package session runs listen sessions: one background loop per session that
// captures audio, segments it into utterances and transcribes them until one
// yields text or the caller stops it.
//
// A [Controller] owns one audio source, one segmenter and one transcriber
// and runs at most one session at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/segment"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// ErrSessionActive is returned by [Controller.Listen] while another session
// on the same controller is still running.
var ErrSessionActive = errors.New("session: a listen session is already active")

// State is the lifecycle state of the most recent session.
type State int32

const (
	// StateIdle means no session has run yet.
	StateIdle State = iota

	// StateRunning means a session loop is active.
	StateRunning

	// StateComplete means the last session finished, with or without an
	// utterance.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Utterance is the outcome of a successful session.
type Utterance struct {
	// Text is the transcription, trimmed of surrounding whitespace.
	Text string

	// Language is the language the text was recognised in, when known.
	Language string

	// Provider names the backend that produced the text.
	Provider string

	// SegmentID identifies the audio segment the text came from.
	SegmentID string

	// Start is the capture offset of the segment's first frame.
	Start time.Duration

	// Duration is the length of the segment audio.
	Duration time.Duration
}

// Option configures a [Controller].
type Option func(*Controller)

// WithMetrics records session metrics on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller runs listen sessions. Listen and Stop may be called from
// different goroutines.
type Controller struct {
	src       audio.Source
	seg       segment.Segmenter
	tr        stt.Transcriber
	segmenter string
	metrics   *observe.Metrics
	log       *slog.Logger

	// listening is held for the whole of a session.
	listening sync.Mutex
	// device is held while the source is open, by a session or a source check.
	device sync.Mutex

	state atomic.Int32

	mu   sync.Mutex
	stop chan struct{}
}

// New creates a Controller over the given collaborators.
func New(src audio.Source, seg segment.Segmenter, tr stt.Transcriber, opts ...Option) (*Controller, error) {
	switch {
	case src == nil:
		return nil, errors.New("session: audio source is nil")
	case seg == nil:
		return nil, errors.New("session: segmenter is nil")
	case tr == nil:
		return nil, errors.New("session: transcriber is nil")
	}
	c := &Controller{
		src:       src,
		seg:       seg,
		tr:        tr,
		segmenter: string(seg.Kind()),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// State returns the state of the current or most recent session.
func (c *Controller) State() State { return State(c.state.Load()) }

// outcome is what the loop leaves in the result slot.
type outcome struct {
	utt Utterance
	ok  bool
	err error
}

// Listen runs one session. It opens the audio source, starts the capture
// loop and blocks until the loop produces an utterance, fails, or is stopped
// through [Controller.Stop] or ctx. A stopped session returns ok == false and
// a nil error. Device failures are returned as [*audio.DeviceError]. The
// source is closed before Listen returns.
func (c *Controller) Listen(ctx context.Context) (Utterance, bool, error) {
	if !c.listening.TryLock() {
		return Utterance{}, false, ErrSessionActive
	}
	defer c.listening.Unlock()
	c.device.Lock()
	defer c.device.Unlock()

	stop := make(chan struct{})
	c.mu.Lock()
	c.stop = stop
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stop = nil
		c.mu.Unlock()
	}()

	mctx := context.WithoutCancel(ctx)
	c.state.Store(int32(StateRunning))
	defer c.state.Store(int32(StateComplete))
	c.metrics.ActiveSessions.Add(mctx, 1)
	defer c.metrics.ActiveSessions.Add(mctx, -1)

	c.seg.Reset()
	if err := c.src.Open(ctx); err != nil {
		c.metrics.RecordSession(mctx, "error")
		return Utterance{}, false, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stopping atomic.Bool
	result := make(chan outcome, 1)
	go func() { result <- c.loop(loopCtx, &stopping) }()

	var (
		out  outcome
		done bool
	)
	select {
	case out = <-result:
		done = true
	case <-stop:
	case <-ctx.Done():
	}
	if !done {
		// The loop sees the flag at its next check point; cancelling
		// loopCtx cuts short a transcription in flight. Whatever the loop
		// produced in the meantime is dropped.
		stopping.Store(true)
		cancel()
		<-result
		out = outcome{}
	}

	if err := c.src.Close(); err != nil {
		c.log.Warn("session: close audio source", "err", err)
	}

	switch {
	case out.err != nil:
		c.metrics.RecordSession(mctx, "error")
		return Utterance{}, false, out.err
	case !out.ok:
		c.log.Debug("session: stopped without utterance")
		c.metrics.RecordSession(mctx, "stopped")
		return Utterance{}, false, nil
	default:
		c.metrics.RecordSession(mctx, "utterance")
		return out.utt, true, nil
	}
}

// CheckSource opens and closes the audio source to check that it is usable.
// While a session holds the source it is left alone and busy is true. A
// session starting during the check waits for it to finish.
func (c *Controller) CheckSource(ctx context.Context) (busy bool, err error) {
	if !c.device.TryLock() {
		return true, nil
	}
	defer c.device.Unlock()
	if err := c.src.Open(ctx); err != nil {
		return false, fmt.Errorf("session: check source: %w", err)
	}
	if err := c.src.Close(); err != nil {
		return false, fmt.Errorf("session: check source: %w", err)
	}
	return false, nil
}

// Stop asks the running session, if any, to finish without an utterance.
// It does not wait; Listen returns once the loop has exited.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return
	}
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

// loop is the session body. It returns the zero outcome when stopping is
// observed.
func (c *Controller) loop(ctx context.Context, stopping *atomic.Bool) outcome {
	for {
		if stopping.Load() {
			return outcome{}
		}

		frame, err := c.src.ReadFrame()
		if err != nil {
			if stopping.Load() {
				return outcome{}
			}
			return outcome{err: err}
		}

		seg, ok, err := c.seg.Push(frame)
		if err != nil {
			return outcome{err: fmt.Errorf("session: segment: %w", err)}
		}
		if !ok {
			continue
		}
		c.metrics.RecordSegment(ctx, c.segmenter, seg.Duration())
		log := c.log.With("segment_id", seg.ID)
		log.Debug("session: segment emitted", "start", seg.Start, "duration", seg.Duration(), "bytes", len(seg.PCM))

		res, err := c.tr.Transcribe(ctx, seg)
		switch {
		case err == nil && strings.TrimSpace(res.Text) != "":
			log.Info("session: utterance", "provider", res.Provider, "language", res.Language, "latency", res.Latency)
			return outcome{ok: true, utt: Utterance{
				Text:      strings.TrimSpace(res.Text),
				Language:  res.Language,
				Provider:  res.Provider,
				SegmentID: seg.ID,
				Start:     seg.Start,
				Duration:  seg.Duration(),
			}}
		case err == nil, errors.Is(err, stt.ErrNotUnderstood):
			log.Info("session: speech not understood, listening on")
		case stopping.Load() || ctx.Err() != nil:
			return outcome{}
		case stt.IsBackendError(err):
			log.Warn("session: transcription backend failed, listening on", "err", err)
		default:
			log.Warn("session: transcription failed, listening on", "err", err)
		}
	}
}
