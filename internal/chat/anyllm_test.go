package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/parley/internal/observe"
)

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		wantErr  string
	}{
		{name: "ollama needs no key", provider: "ollama"},
		{name: "vendor name is case-insensitive", provider: "DeepSeek", apiKey: "sk-test"},
		{name: "anthropic", provider: "anthropic", apiKey: "sk-ant-test"},
		{name: "remote vendor without key", provider: "mistral", wantErr: "apiKey"},
		{name: "unknown vendor", provider: "fakecloud", apiKey: "k", wantErr: "unsupported provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.apiKey, "some-model", WithProvider(tt.provider))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("New() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(): %v", err)
			}
			if _, ok := c.backend.(*anyllmBackend); !ok {
				t.Errorf("backend = %T, want *anyllmBackend", c.backend)
			}
		})
	}
}

func TestToAnyLLM(t *testing.T) {
	got := toAnyLLM([]message{
		{role: "system", content: "be brief"},
		{role: "user", content: "hello"},
		{role: "assistant", content: "hi"},
	})
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, want := range []string{"system", "user", "assistant"} {
		if got[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, got[i].Role, want)
		}
	}
	if got[1].ContentString() != "hello" {
		t.Errorf("user content = %q", got[1].ContentString())
	}
}

// stubBackend answers from a fixed reply or error.
type stubBackend struct {
	reply string
	err   error
	got   []message
}

func (s *stubBackend) complete(_ context.Context, _ string, msgs []message) (string, error) {
	s.got = msgs
	return s.reply, s.err
}

func TestReply_BackendError(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	h, _ := NewHistory(2, 0, "")
	stub := &stubBackend{err: errors.New("overloaded")}
	c := &Client{backend: stub, provider: "deepseek", model: "deepseek-chat", history: h, metrics: m}

	if _, err := c.Reply(context.Background(), "hello"); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("Reply() error = %v", err)
	}
	if h.Len() != 0 {
		t.Error("failed exchange was recorded")
	}

	stub.err, stub.reply = nil, "hi"
	if got, err := c.Reply(context.Background(), "hello"); err != nil || got != "hi" {
		t.Fatalf("Reply() = %q, %v", got, err)
	}
	if len(stub.got) != 1 || stub.got[0].role != "user" {
		t.Errorf("request = %+v, want a single user message", stub.got)
	}
}
