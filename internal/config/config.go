// Package config provides the configuration schema, loader, and provider registry
// for parley.
package config

import (
	"time"

	"github.com/MrWong99/parley/pkg/provider/vad"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for parley.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Chat          ChatConfig          `yaml:"chat"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9464"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig selects and tunes the capture source.
type AudioConfig struct {
	// Source names the registered source implementation ("mic", "wavfile").
	Source string `yaml:"source"`

	// Device selects a capture device by name substring. Empty means the
	// system default. Only used by "mic".
	Device string `yaml:"device"`

	// ReadTimeout bounds how long a frame read may block before the device
	// is treated as disconnected.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// Path is the recording replayed by "wavfile".
	Path string `yaml:"path"`

	// Loop restarts the recording when it ends.
	Loop bool `yaml:"loop"`

	// Realtime paces replay at capture speed.
	Realtime bool `yaml:"realtime"`
}

// VADConfig configures speech detection and segmentation.
type VADConfig struct {
	// Kind selects the segmentation strategy: "frame" (ring hysteresis over
	// per-frame verdicts) or "window" (speech timestamps over a growing
	// buffer).
	Kind vad.Kind `yaml:"kind"`

	// Classifier names the registered classifier for Kind.
	Classifier string `yaml:"classifier"`

	// Aggressiveness is the per-frame filtering level, 0 to 3. Nil means 3.
	Aggressiveness *int `yaml:"aggressiveness"`

	// Padding is the span of audio the hysteresis ring covers. Zero picks
	// 300ms for cloud transcription and 900ms for whisper.
	Padding time.Duration `yaml:"padding"`

	// Ratio is the fraction of the ring that must agree to change state.
	Ratio float64 `yaml:"ratio"`

	// Threshold, NegThreshold, MinSpeech, MinSilence and SpeechPad tune the
	// window classifier.
	Threshold    float64       `yaml:"threshold"`
	NegThreshold float64       `yaml:"neg_threshold"`
	MinSpeech    time.Duration `yaml:"min_speech"`
	MinSilence   time.Duration `yaml:"min_silence"`
	SpeechPad    time.Duration `yaml:"speech_pad"`

	// Chunk is how much audio the window strategy accumulates between
	// classifier runs.
	Chunk time.Duration `yaml:"chunk"`

	// MaxBuffer bounds the window strategy's buffer.
	MaxBuffer time.Duration `yaml:"max_buffer"`
}

// ClassifierConfig returns the classifier tunables as a [vad.Config].
func (v VADConfig) ClassifierConfig() vad.Config {
	c := vad.Config{
		Threshold:    v.Threshold,
		NegThreshold: v.NegThreshold,
		MinSpeech:    v.MinSpeech,
		MinSilence:   v.MinSilence,
		SpeechPad:    v.SpeechPad,
	}
	if v.Aggressiveness != nil {
		c.Aggressiveness = *v.Aggressiveness
	}
	return c
}

// TranscriptionConfig lists the transcription backends in failover order.
type TranscriptionConfig struct {
	// Primary is tried first for every segment.
	Primary ProviderEntry `yaml:"primary"`

	// Fallbacks are tried in order when the previous backend fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// CircuitBreaker tunes the per-backend breakers.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Vocabulary lists names and terms that misheard words are corrected to.
	Vocabulary []string `yaml:"vocabulary"`
}

// Entries returns the primary followed by the fallbacks.
func (t TranscriptionConfig) Entries() []ProviderEntry {
	return append([]ProviderEntry{t.Primary}, t.Fallbacks...)
}

// CircuitBreakerConfig tunes a circuit breaker. Zero values take the
// breaker's defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ProviderEntry is the common configuration block shared by all transcription
// backends. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram",
	// "whisper-native").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any. When
	// empty, the provider's usual environment variable is consulted.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. For "whisper" it
	// is the whisper.cpp server address.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider. For "whisper-native" it is
	// the path to the ggml model file.
	Model string `yaml:"model"`

	// Languages lists the BCP-47 tags to try in order. Cloud recognizers
	// default to en-US then zh-CN; whisper uses only the first entry and
	// detects the language when none is given.
	Languages []string `yaml:"languages"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// ChatConfig configures the conversational collaborator that answers each
// utterance. An empty Name disables it and utterances are only printed.
type ChatConfig struct {
	Name             string        `yaml:"name"`
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	SystemPromptFile string        `yaml:"system_prompt_file"`
	HistoryTurns     int           `yaml:"history_turns"`
	HistoryTokens    int           `yaml:"history_tokens"`
	HistoryFile      string        `yaml:"history_file"`
	Timeout          time.Duration `yaml:"timeout"`

	// QuitPhrase ends the program when it is heard. Empty means
	// "please quit now".
	QuitPhrase string `yaml:"quit_phrase"`
}
