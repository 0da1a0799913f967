package main

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/mic"
	"github.com/MrWong99/parley/pkg/audio/wavfile"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/stt/deepgram"
	"github.com/MrWong99/parley/pkg/provider/stt/multilang"
	oaistt "github.com/MrWong99/parley/pkg/provider/stt/openai"
	"github.com/MrWong99/parley/pkg/provider/stt/whisper"
	"github.com/MrWong99/parley/pkg/provider/vad"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
	"github.com/MrWong99/parley/pkg/provider/vad/window"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterSource("mic", func(cfg config.AudioConfig) (audio.Source, error) {
		return mic.New(mic.WithDevice(cfg.Device), mic.WithReadTimeout(cfg.ReadTimeout)), nil
	})
	reg.RegisterSource("wavfile", func(cfg config.AudioConfig) (audio.Source, error) {
		return wavfile.New(cfg.Path, wavfile.WithLoop(cfg.Loop), wavfile.WithRealtime(cfg.Realtime)), nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterFrameClassifier("energy", func(cfg config.VADConfig) (vad.FrameClassifier, error) {
		return energy.New(cfg.ClassifierConfig().Aggressiveness)
	})
	reg.RegisterWindowClassifier("energy", func(cfg config.VADConfig) (vad.WindowClassifier, error) {
		return window.New(cfg.ClassifierConfig())
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	// The cloud recognizers take one language per request and are wrapped in
	// the multi-language transcriber; whisper takes the whole segment once.

	reg.RegisterTranscriber("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if kws := keywords(entry.Options); len(kws) > 0 {
			opts = append(opts, deepgram.WithKeywords(kws))
		}
		rec, err := deepgram.New(apiKey(entry, "DEEPGRAM_API_KEY"), opts...)
		if err != nil {
			return nil, err
		}
		return withLanguages(rec, entry.Languages)
	})

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oaistt.Option
		if entry.Model != "" {
			opts = append(opts, oaistt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		if prompt := config.OptString(entry.Options, "prompt"); prompt != "" {
			opts = append(opts, oaistt.WithPrompt(prompt))
		}
		rec, err := oaistt.New(apiKey(entry, "OPENAI_API_KEY"), opts...)
		if err != nil {
			return nil, err
		}
		return withLanguages(rec, entry.Languages)
	})

	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if len(entry.Languages) > 0 {
			opts = append(opts, whisper.WithLanguage(entry.Languages[0]))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.NativeOption
		if len(entry.Languages) > 0 {
			opts = append(opts, whisper.WithNativeLanguage(entry.Languages[0]))
		}
		if n := config.OptInt(entry.Options, "threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(entry.Model, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	src, err := reg.CreateSource(cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("create audio source %q: %w", cfg.Audio.Source, err)
	}
	ps.Source = src
	slog.Info("provider created", "kind", "audio", "name", cfg.Audio.Source)

	switch cfg.VAD.Kind {
	case vad.KindWindow:
		ps.Window, err = reg.CreateWindowClassifier(cfg.VAD)
	default:
		ps.Frame, err = reg.CreateFrameClassifier(cfg.VAD)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s classifier %q: %w", cfg.VAD.Kind, cfg.VAD.Classifier, err)
	}
	slog.Info("provider created", "kind", "vad", "name", cfg.VAD.Classifier, "strategy", cfg.VAD.Kind)

	for _, entry := range cfg.Transcription.Entries() {
		t, err := reg.CreateTranscriber(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("transcription backend not available, skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		ps.Transcribers = append(ps.Transcribers, app.NamedTranscriber{Name: entry.Name, Transcriber: t})
		slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model)
	}
	if len(ps.Transcribers) == 0 {
		return nil, errors.New("no transcription backend could be created")
	}
	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// withLanguages wraps a cloud recognizer so that each segment is tried in
// the configured languages, en-US then zh-CN by default.
func withLanguages(rec stt.Recognizer, langs []string) (stt.Transcriber, error) {
	primary, secondary := multilang.DefaultPrimary, multilang.DefaultSecondary
	if len(langs) > 0 {
		primary, secondary = langs[0], ""
	}
	if len(langs) > 1 {
		secondary = langs[1]
	}
	return multilang.New(rec, primary, secondary)
}

// apiKey returns the configured key or, when empty, the environment variable.
func apiKey(entry config.ProviderEntry, env string) string {
	return cmp.Or(entry.APIKey, os.Getenv(env))
}

// keywords reads a list of boost keywords from the provider options.
func keywords(opts map[string]any) []stt.KeywordBoost {
	list, _ := opts["keywords"].([]any)
	var out []stt.KeywordBoost
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, stt.KeywordBoost{Keyword: s, Boost: 1})
		}
	}
	return out
}
