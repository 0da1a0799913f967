// Package deepgram provides a Deepgram-backed [stt.Recognizer] over the
// Deepgram streaming WebSocket API.
//
// Each Recognize call opens one stream, sends the whole segment as linear16
// PCM, asks Deepgram to flush with a CloseStream message, and collects the
// final results until the server closes the connection.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	providerName     = "deepgram"

	// chunkBytes is how much PCM goes into one binary message (250 ms).
	chunkBytes = audio.SampleRate / 4 * audio.BytesPerSample
)

// Option is a functional option for configuring the Deepgram Recognizer.
type Option func(*Recognizer)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(r *Recognizer) {
		r.model = model
	}
}

// WithKeywords sets vocabulary boosts sent with every request.
func WithKeywords(keywords []stt.KeywordBoost) Option {
	return func(r *Recognizer) {
		r.keywords = keywords
	}
}

// WithEndpoint overrides the WebSocket endpoint. Intended for tests and
// self-hosted deployments.
func WithEndpoint(endpoint string) Option {
	return func(r *Recognizer) {
		r.endpoint = endpoint
	}
}

// Recognizer implements [stt.Recognizer] backed by the Deepgram streaming API.
type Recognizer struct {
	apiKey   string
	model    string
	endpoint string
	keywords []stt.KeywordBoost
}

var _ stt.Recognizer = (*Recognizer)(nil)

// New creates a new Deepgram Recognizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	r := &Recognizer{
		apiKey:   apiKey,
		model:    defaultModel,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Name implements [stt.Recognizer].
func (r *Recognizer) Name() string { return providerName }

// Recognize implements [stt.Recognizer].
func (r *Recognizer) Recognize(ctx context.Context, seg audio.Segment, language string) (string, error) {
	wsURL, err := r.buildURL(language, seg.SampleRate)
	if err != nil {
		return "", stt.NewBackendError(providerName, fmt.Errorf("build URL: %w", err))
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return "", stt.NewBackendError(providerName, fmt.Errorf("dial: %w", err))
	}
	defer conn.CloseNow()

	for off := 0; off < len(seg.PCM); off += chunkBytes {
		end := min(off+chunkBytes, len(seg.PCM))
		if err := conn.Write(ctx, websocket.MessageBinary, seg.PCM[off:end]); err != nil {
			return "", stt.NewBackendError(providerName, fmt.Errorf("send audio: %w", err))
		}
	}
	// Ask Deepgram to flush pending audio and close the stream.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return "", stt.NewBackendError(providerName, fmt.Errorf("close stream: %w", err))
	}

	var finals []string
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", stt.NewBackendError(providerName, fmt.Errorf("read: %w", err))
		}

		res, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		if res.metadata {
			// Metadata is the last message Deepgram sends for a closed stream.
			conn.Close(websocket.StatusNormalClosure, "")
			break
		}
		if res.isFinal && strings.TrimSpace(res.text) != "" {
			finals = append(finals, strings.TrimSpace(res.text))
		}
	}

	if len(finals) == 0 {
		return "", stt.ErrNotUnderstood
	}
	return strings.Join(finals, " "), nil
}

// buildURL constructs the Deepgram streaming endpoint URL for one request.
func (r *Recognizer) buildURL(language string, sampleRate int) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", err
	}
	if sampleRate == 0 {
		sampleRate = audio.SampleRate
	}

	q := u.Query()
	q.Set("model", r.model)
	if language != "" {
		q.Set("language", language)
	}
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(audio.Channels))

	for _, kw := range r.keywords {
		// Deepgram keyword format: word:boost (e.g., "Eldrinax:5")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for Results and
// Metadata events.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	text       string
	isFinal    bool
	confidence float64
	metadata   bool
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message. Returns
// false if the message should be ignored.
func parseDeepgramResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	switch resp.Type {
	case "Metadata":
		return result{metadata: true}, true
	case "Results":
	default:
		return result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	return result{text: alt.Transcript, isFinal: resp.IsFinal, confidence: alt.Confidence}, true
}
