package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory signatures accepted by the [Registry].
type (
	SourceFactory           func(AudioConfig) (audio.Source, error)
	FrameClassifierFactory  func(VADConfig) (vad.FrameClassifier, error)
	WindowClassifierFactory func(VADConfig) (vad.WindowClassifier, error)
	TranscriberFactory      func(ProviderEntry) (stt.Transcriber, error)
)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sources     map[string]SourceFactory
	frame       map[string]FrameClassifierFactory
	window      map[string]WindowClassifierFactory
	transcriber map[string]TranscriberFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources:     make(map[string]SourceFactory),
		frame:       make(map[string]FrameClassifierFactory),
		window:      make(map[string]WindowClassifierFactory),
		transcriber: make(map[string]TranscriberFactory),
	}
}

// RegisterSource registers an audio source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSource(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// RegisterFrameClassifier registers a per-frame classifier factory under name.
func (r *Registry) RegisterFrameClassifier(name string, factory FrameClassifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame[name] = factory
}

// RegisterWindowClassifier registers a windowed classifier factory under name.
func (r *Registry) RegisterWindowClassifier(name string, factory WindowClassifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window[name] = factory
}

// RegisterTranscriber registers a transcription backend factory under name.
func (r *Registry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// CreateSource instantiates the audio source registered under cfg.Source.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSource(cfg AudioConfig) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// CreateFrameClassifier instantiates the per-frame classifier registered under cfg.Classifier.
func (r *Registry) CreateFrameClassifier(cfg VADConfig) (vad.FrameClassifier, error) {
	r.mu.RLock()
	factory, ok := r.frame[cfg.Classifier]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/frame/%q", ErrProviderNotRegistered, cfg.Classifier)
	}
	return factory(cfg)
}

// CreateWindowClassifier instantiates the windowed classifier registered under cfg.Classifier.
func (r *Registry) CreateWindowClassifier(cfg VADConfig) (vad.WindowClassifier, error) {
	r.mu.RLock()
	factory, ok := r.window[cfg.Classifier]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/window/%q", ErrProviderNotRegistered, cfg.Classifier)
	}
	return factory(cfg)
}

// CreateTranscriber instantiates the transcription backend registered under entry.Name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Transcribers returns the registered transcriber names, sorted.
func (r *Registry) Transcribers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transcriber))
	for name := range r.transcriber {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OptString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// OptInt extracts an integer value from a provider Options map. YAML
// decodes whole numbers as int; other types yield 0.
func OptInt(opts map[string]any, key string) int {
	n, _ := opts[key].(int)
	return n
}
