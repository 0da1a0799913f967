// Package whisper provides local whisper.cpp transcribers.
//
// [Server] talks to a running whisper-server binary over its REST API
// (POST /inference). [Native] links whisper.cpp directly through its Go
// bindings. Both decode a finished segment in one request and return the
// text as produced; neither retries in another language.
//
// Usage:
//
//	t, err := whisper.NewServer("http://localhost:8080", whisper.WithLanguage("en"))
//	res, err := t.Transcribe(ctx, seg)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const (
	serverProviderName = "whisper"
	defaultTimeout     = 30 * time.Second
)

var _ stt.Transcriber = (*Server)(nil)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithModel sets the model identifier forwarded to the server. Most
// whisper-server builds ignore it and use the model they were started with.
func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// WithLanguage sets the language hint sent with every request (e.g. "en").
// Empty lets the server decide.
func WithLanguage(lang string) Option {
	return func(s *Server) { s.language = lang }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.httpClient = &http.Client{Timeout: d} }
}

// Server implements [stt.Transcriber] against a whisper.cpp server.
type Server struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// NewServer creates a Server that posts to serverURL + "/inference".
func NewServer(serverURL string, opts ...Option) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	s := &Server{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Transcribe implements [stt.Transcriber].
func (s *Server) Transcribe(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	if seg.Empty() {
		return stt.Result{}, stt.ErrNotUnderstood
	}
	rate := seg.SampleRate
	if rate == 0 {
		rate = audio.SampleRate
	}

	start := time.Now()
	text, err := s.infer(ctx, audio.EncodeWAV(seg.PCM, rate, audio.Channels))
	if err != nil {
		if ctx.Err() != nil {
			return stt.Result{}, ctx.Err()
		}
		return stt.Result{}, stt.NewBackendError(serverProviderName, err)
	}
	if strings.TrimSpace(text) == "" {
		return stt.Result{}, stt.ErrNotUnderstood
	}
	return stt.Result{
		Text:     text,
		Language: s.language,
		Provider: serverProviderName,
		Latency:  time.Since(start),
	}, nil
}

// infer POSTs wav to the /inference endpoint as multipart/form-data and
// returns the transcribed text.
func (s *Server) infer(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("write wav data: %w", err)
	}
	fields := [][2]string{
		{"response_format", "json"},
		{"language", s.language},
		{"model", s.model},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("parse JSON response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("server error: %s", result.Error)
	}
	return result.Text, nil
}
