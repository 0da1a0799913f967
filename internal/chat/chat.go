// Package chat is the conversation partner for recognised utterances. It
// sends each utterance, with a window of recent exchanges, to a chat
// completion backend and remembers the reply.
//
// The default backend speaks the OpenAI protocol, which also covers
// compatible endpoints such as DeepSeek or Qwen via [WithBaseURL]. Other
// vendors (anthropic, gemini, ollama, ...) are reached through any-llm-go
// when selected with [WithProvider].
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/parley/internal/observe"
)

const (
	// DefaultHistoryTurns is how many past exchanges accompany a prompt.
	DefaultHistoryTurns = 5

	// DefaultQuitPhrase ends the conversation when spoken on its own.
	DefaultQuitPhrase = "please quit now"

	// ProviderOpenAI selects the built-in OpenAI-protocol backend.
	ProviderOpenAI = "openai"
)

// config holds optional configuration for the client.
type config struct {
	provider     string
	baseURL      string
	systemPrompt string
	historyTurns int
	maxTokens    int
	historyFile  string
	timeout      time.Duration
	metrics      *observe.Metrics
}

// Option is a functional option for Client.
type Option func(*config)

// WithProvider selects the chat vendor. Default: [ProviderOpenAI].
func WithProvider(name string) Option {
	return func(c *config) { c.provider = name }
}

// WithBaseURL overrides the default OpenAI API base URL, e.g. for
// DeepSeek or Qwen compatible endpoints.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithSystemPrompt sets the system message sent before the history.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) { c.systemPrompt = prompt }
}

// WithHistoryTurns sets how many past exchanges are sent with each prompt.
// Default: [DefaultHistoryTurns].
func WithHistoryTurns(n int) Option {
	return func(c *config) { c.historyTurns = n }
}

// WithHistoryTokenBudget caps the estimated token size of the history
// window. Zero disables the cap.
func WithHistoryTokenBudget(tokens int) Option {
	return func(c *config) { c.maxTokens = tokens }
}

// WithHistoryFile persists every exchange to a JSON file and preloads it.
func WithHistoryFile(path string) Option {
	return func(c *config) { c.historyFile = path }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMetrics records chat latency on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// message is one entry of a completion request.
type message struct {
	role    string
	content string
}

// backend performs a single chat completion.
type backend interface {
	complete(ctx context.Context, model string, msgs []message) (string, error)
}

// Client talks to the chat model.
type Client struct {
	backend      backend
	provider     string
	model        string
	systemPrompt string
	history      *History
	metrics      *observe.Metrics
}

// New constructs a Client for model. apiKey may be empty only for local
// vendors that take none.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, errors.New("chat: model must not be empty")
	}

	cfg := &config{provider: ProviderOpenAI, historyTurns: DefaultHistoryTurns}
	for _, o := range opts {
		o(cfg)
	}
	cfg.provider = strings.ToLower(cfg.provider)
	if apiKey == "" && !isLocalProvider(cfg.provider) {
		return nil, errors.New("chat: apiKey must not be empty")
	}

	history, err := NewHistory(cfg.historyTurns, cfg.maxTokens, cfg.historyFile)
	if err != nil {
		return nil, err
	}

	var b backend
	if cfg.provider == ProviderOpenAI {
		b = newOpenAIBackend(apiKey, cfg)
	} else {
		b, err = newAnyLLMBackend(cfg.provider, apiKey, cfg)
		if err != nil {
			return nil, err
		}
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}

	return &Client{
		backend:      b,
		provider:     cfg.provider,
		model:        model,
		systemPrompt: cfg.systemPrompt,
		history:      history,
		metrics:      cfg.metrics,
	}, nil
}

// LoadSystemPrompt reads a system prompt from a file.
func LoadSystemPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("chat: load system prompt: %w", err)
	}
	return string(data), nil
}

// History returns the conversation history.
func (c *Client) History() *History { return c.history }

// Reply sends text to the model and returns its answer. The exchange is
// added to the history only when the call succeeds.
func (c *Client) Reply(ctx context.Context, text string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "chat.reply")
	start := time.Now()

	name := "chat-" + c.provider
	answer, err := c.backend.complete(ctx, c.model, c.messages(text))
	c.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, name, "chat", "error")
		c.metrics.RecordProviderError(ctx, name, "chat")
		observe.EndSpan(span, err)
		return "", fmt.Errorf("chat: completion: %w", err)
	}
	c.metrics.RecordProviderRequest(ctx, name, "chat", "ok")
	observe.EndSpan(span, nil)

	if err := c.history.Add(text, answer); err != nil {
		observe.Logger(ctx).Warn("chat: history not saved", "err", err)
	}
	return answer, nil
}

// messages assembles the system prompt, the history window and the new
// user message.
func (c *Client) messages(text string) []message {
	window := c.history.Window()
	msgs := make([]message, 0, 2+2*len(window))
	if c.systemPrompt != "" {
		msgs = append(msgs, message{role: "system", content: c.systemPrompt})
	}
	for _, e := range window {
		msgs = append(msgs,
			message{role: "user", content: e.User},
			message{role: "assistant", content: e.Assistant},
		)
	}
	return append(msgs, message{role: "user", content: text})
}

// ─── OpenAI protocol ─────────────────────────────────────────────────────────

type openaiBackend struct {
	client oai.Client
}

func newOpenAIBackend(apiKey string, cfg *config) *openaiBackend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	return &openaiBackend{client: oai.NewClient(reqOpts...)}
}

func (b *openaiBackend) complete(ctx context.Context, model string, msgs []message) (string, error) {
	params := make([]oai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.role {
		case "system":
			params = append(params, oai.SystemMessage(m.content))
		case "assistant":
			params = append(params, oai.AssistantMessage(m.content))
		default:
			params = append(params, oai.UserMessage(m.content))
		}
	}
	resp, err := b.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: params,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// IsQuit reports whether text is the quit phrase, ignoring case, surrounding
// whitespace and trailing punctuation added by transcribers.
func IsQuit(text, phrase string) bool {
	if phrase == "" {
		phrase = DefaultQuitPhrase
	}
	norm := func(s string) string {
		s = strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSpace(r)
		})
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return norm(text) == norm(phrase)
}
