// Package openai provides an [stt.Recognizer] backed by the OpenAI audio
// transcription API (or any OpenAI-compatible endpoint).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const (
	defaultModel = oai.AudioModelWhisper1
	providerName = "openai"
)

// config holds optional configuration for the recognizer.
type config struct {
	baseURL string
	model   string
	prompt  string
	timeout time.Duration
}

// Option is a functional option for Recognizer.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model (default "whisper-1").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithPrompt sets a text prompt that guides the model's style and
// vocabulary.
func WithPrompt(prompt string) Option {
	return func(c *config) {
		c.prompt = prompt
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Recognizer implements [stt.Recognizer] using the OpenAI transcription API.
type Recognizer struct {
	client oai.Client
	model  string
	prompt string
}

var _ stt.Recognizer = (*Recognizer)(nil)

// New constructs a Recognizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: string(defaultModel)}
	for _, o := range opts {
		o(cfg)
	}

	// Retries are left to the caller: a failed call must surface as a
	// backend error rather than be repeated for the same segment.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Recognizer{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		prompt: cfg.prompt,
	}, nil
}

// Name implements [stt.Recognizer].
func (r *Recognizer) Name() string { return providerName }

// Recognize implements [stt.Recognizer]. The BCP-47 tag is reduced to its
// ISO-639-1 primary subtag, which is what the API accepts.
func (r *Recognizer) Recognize(ctx context.Context, seg audio.Segment, language string) (string, error) {
	rate := seg.SampleRate
	if rate == 0 {
		rate = audio.SampleRate
	}
	wav := audio.EncodeWAV(seg.PCM, rate, audio.Channels)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
		Model: oai.AudioModel(r.model),
	}
	if lang := primarySubtag(language); lang != "" {
		params.Language = oai.String(lang)
	}
	if r.prompt != "" {
		params.Prompt = oai.String(r.prompt)
	}

	resp, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return "", stt.NewBackendError(providerName, fmt.Errorf("transcription: HTTP %d: %w", apiErr.StatusCode, err))
		}
		return "", stt.NewBackendError(providerName, fmt.Errorf("transcription: %w", err))
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", stt.ErrNotUnderstood
	}
	return resp.Text, nil
}

// primarySubtag returns the lower-cased language subtag of a BCP-47 tag
// ("zh-CN" → "zh").
func primarySubtag(tag string) string {
	lang, _, _ := strings.Cut(tag, "-")
	lang, _, _ = strings.Cut(lang, "_")
	return strings.ToLower(lang)
}
