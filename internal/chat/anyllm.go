package chat

import (
	"context"
	"fmt"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

// Providers lists the vendors accepted by [WithProvider].
var Providers = []string{
	ProviderOpenAI, "anthropic", "deepseek", "gemini",
	"groq", "llamacpp", "llamafile", "mistral", "ollama",
}

// isLocalProvider reports whether the vendor runs locally without an API key.
func isLocalProvider(name string) bool {
	switch name {
	case "ollama", "llamacpp", "llamafile":
		return true
	}
	return false
}

// anyllmBackend reaches non-OpenAI vendors through any-llm-go.
type anyllmBackend struct {
	provider anyllmlib.Provider
	timeout  time.Duration
}

func newAnyLLMBackend(name, apiKey string, cfg *config) (*anyllmBackend, error) {
	var opts []anyllmlib.Option
	if apiKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(apiKey))
	}
	if cfg.baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.baseURL))
	}

	var (
		p   anyllmlib.Provider
		err error
	)
	switch name {
	case "anthropic":
		p, err = anthropic.New(opts...)
	case "deepseek":
		p, err = deepseek.New(opts...)
	case "gemini":
		p, err = gemini.New(opts...)
	case "groq":
		p, err = groq.New(opts...)
	case "llamacpp":
		p, err = llamacpp.New(opts...)
	case "llamafile":
		p, err = llamafile.New(opts...)
	case "mistral":
		p, err = mistral.New(opts...)
	case "ollama":
		p, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("chat: unsupported provider %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: create %q backend: %w", name, err)
	}
	return &anyllmBackend{provider: p, timeout: cfg.timeout}, nil
}

func (b *anyllmBackend) complete(ctx context.Context, model string, msgs []message) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	resp, err := b.provider.Completion(ctx, anyllmlib.CompletionParams{
		Model:    model,
		Messages: toAnyLLM(msgs),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

func toAnyLLM(msgs []message) []anyllmlib.Message {
	out := make([]anyllmlib.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, anyllmlib.Message{Role: m.role, Content: m.content})
	}
	return out
}
