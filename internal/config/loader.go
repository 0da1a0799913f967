package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/parley/internal/segment"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// Segmentation defaults.
const (
	DefaultAggressiveness = 3
	DefaultCloudPadding   = 300 * time.Millisecond
	DefaultLocalPadding   = 900 * time.Millisecond
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"audio": {"mic", "wavfile"},
	"vad":   {"energy"},
	"stt":   {"deepgram", "openai", "whisper", "whisper-native"},
	"chat":  {"openai", "anthropic", "deepseek", "gemini", "groq", "llamacpp", "llamafile", "mistral", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields of cfg in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.Source == "" {
		cfg.Audio.Source = "mic"
	}

	v := &cfg.VAD
	if v.Kind == "" {
		v.Kind = vad.KindFrame
	}
	if v.Classifier == "" {
		v.Classifier = "energy"
	}
	if v.Aggressiveness == nil {
		a := DefaultAggressiveness
		v.Aggressiveness = &a
	}
	if v.Ratio == 0 {
		v.Ratio = segment.DefaultRatio
	}
	if v.Padding == 0 {
		v.Padding = DefaultCloudPadding
		if IsLocalTranscriber(cfg.Transcription.Primary.Name) {
			v.Padding = DefaultLocalPadding
		}
	}
}

// IsLocalTranscriber reports whether name is one of the whisper backends,
// which need longer segments than the cloud recognizers.
func IsLocalTranscriber(name string) bool {
	return strings.HasPrefix(name, "whisper")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	validateProviderName("audio", cfg.Audio.Source)
	if cfg.Audio.Source == "wavfile" && cfg.Audio.Path == "" {
		errs = append(errs, errors.New("audio.path is required when source is wavfile"))
	}
	if cfg.Audio.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("audio.read_timeout %v must not be negative", cfg.Audio.ReadTimeout))
	}

	// VAD
	v := cfg.VAD
	validateProviderName("vad", v.Classifier)
	switch v.Kind {
	case vad.KindFrame:
		seg := segment.Config{Padding: v.Padding, FrameDuration: audio.FrameDuration, Ratio: v.Ratio}
		if err := seg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("vad: %w", err))
		}
	case vad.KindWindow:
		if v.Chunk < 0 || v.MaxBuffer < 0 {
			errs = append(errs, errors.New("vad.chunk and vad.max_buffer must not be negative"))
		}
		if v.Chunk > 0 && v.MaxBuffer > 0 && v.MaxBuffer < v.Chunk {
			errs = append(errs, fmt.Errorf("vad.max_buffer %v must be at least vad.chunk %v", v.MaxBuffer, v.Chunk))
		}
	default:
		errs = append(errs, fmt.Errorf("vad.kind %q is invalid; valid values: frame, window", v.Kind))
	}
	if err := v.ClassifierConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	// Transcription
	for i, entry := range cfg.Transcription.Entries() {
		prefix := "transcription.primary"
		if i > 0 {
			prefix = fmt.Sprintf("transcription.fallbacks[%d]", i-1)
		}
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("stt", entry.Name)
		if entry.Name == "whisper" && entry.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for whisper", prefix))
		}
		if entry.Name == "whisper-native" && entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required for whisper-native", prefix))
		}
	}
	cb := cfg.Transcription.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("transcription.circuit_breaker values must not be negative"))
	}

	// Chat
	if cfg.Chat.Name != "" {
		validateProviderName("chat", cfg.Chat.Name)
		if cfg.Chat.Model == "" {
			errs = append(errs, errors.New("chat.model is required when chat.name is set"))
		}
	}
	if cfg.Chat.HistoryTurns < 0 || cfg.Chat.HistoryTokens < 0 {
		errs = append(errs, errors.New("chat.history_turns and chat.history_tokens must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
