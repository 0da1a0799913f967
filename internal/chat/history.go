package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// charsPerToken is the heuristic ratio used for token estimation. English
// text averages roughly four characters per token across common tokenizers.
const charsPerToken = 4

// Exchange is one user utterance and the assistant's reply.
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Assistant string    `json:"bot"`
}

// History keeps the conversation and hands out a bounded window of the most
// recent exchanges as model context. It is safe for concurrent use.
type History struct {
	turns     int
	maxTokens int
	path      string

	mu        sync.Mutex
	exchanges []Exchange
}

// NewHistory creates a History whose context window holds at most turns
// exchanges and, when maxTokens is positive, at most roughly maxTokens
// tokens. A non-empty path makes every added exchange persist to that JSON
// file; existing entries in it are loaded.
func NewHistory(turns, maxTokens int, path string) (*History, error) {
	h := &History{turns: turns, maxTokens: maxTokens, path: path}
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return h, nil
	case err != nil:
		return nil, fmt.Errorf("chat: read history: %w", err)
	case len(data) == 0:
		return h, nil
	}
	if err := json.Unmarshal(data, &h.exchanges); err != nil {
		return nil, fmt.Errorf("chat: parse history %q: %w", path, err)
	}
	return h, nil
}

// Add records an exchange and, when a file is configured, rewrites it.
func (h *History) Add(user, assistant string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = append(h.exchanges, Exchange{
		Timestamp: time.Now(),
		User:      user,
		Assistant: assistant,
	})
	if h.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(h.exchanges, "", "  ")
	if err != nil {
		return fmt.Errorf("chat: encode history: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("chat: write history: %w", err)
	}
	return nil
}

// Window returns the exchanges to send as context, oldest first: the last
// turns exchanges, further trimmed from the front until the token estimate
// fits maxTokens.
func (h *History) Window() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := max(len(h.exchanges)-h.turns, 0)
	window := h.exchanges[start:]
	if h.maxTokens > 0 {
		total := 0
		for _, e := range window {
			total += estimateTokens(e)
		}
		for len(window) > 0 && total > h.maxTokens {
			total -= estimateTokens(window[0])
			window = window[1:]
		}
	}
	return append([]Exchange(nil), window...)
}

// Len returns the number of recorded exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.exchanges)
}

// Reset forgets all exchanges. The history file, if any, is left alone.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = nil
}

// estimateTokens returns a rough token count for an exchange using the
// 1-token-per-4-characters heuristic.
func estimateTokens(e Exchange) int {
	chars := len(e.User) + len(e.Assistant)
	tokens := chars / charsPerToken
	if tokens == 0 && chars > 0 {
		tokens = 1
	}
	return tokens
}
