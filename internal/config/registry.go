package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Pavlo4242/bluethai/pkg/conversation"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/provider/stt"
	"github.com/Pavlo4242/bluethai/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned when a config entry names a provider
// or store driver that has no factory.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMFactory builds an LLM provider. The translator calls it again whenever
// the selected API key or model changes, so it must be cheap.
type LLMFactory func(ctx context.Context, entry ProviderEntry) (llm.Provider, error)

// STTFactory builds a speech recogniser.
type STTFactory func(entry ProviderEntry) (stt.Provider, error)

// TTSFactory builds a speech synthesiser.
type TTSFactory func(entry ProviderEntry) (tts.Provider, error)

// StoreFactory opens a conversation store.
type StoreFactory func(ctx context.Context, cfg StoreConfig) (conversation.Store, error)

// factories is one kind's name-to-factory table.
type factories[K ~string, F any] map[K]F

func (f factories[K, F]) lookup(kind string, name K) (F, error) {
	fn, ok := f[name]
	if !ok {
		return fn, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, name)
	}
	return fn, nil
}

func (f factories[K, F]) names() []string {
	out := make([]string, 0, len(f))
	for k := range maps.Keys(f) {
		out = append(out, string(k))
	}
	slices.Sort(out)
	return out
}

// Registry resolves the provider names found in a [Config] to constructors.
// Registering a name twice replaces the first factory. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	llm   factories[string, LLMFactory]
	stt   factories[string, STTFactory]
	tts   factories[string, TTSFactory]
	store factories[StoreDriver, StoreFactory]
}

// NewRegistry returns a Registry with nothing registered.
func NewRegistry() *Registry {
	return &Registry{
		llm:   factories[string, LLMFactory]{},
		stt:   factories[string, STTFactory]{},
		tts:   factories[string, TTSFactory]{},
		store: factories[StoreDriver, StoreFactory]{},
	}
}

// RegisterLLM adds an LLM factory under name.
func (r *Registry) RegisterLLM(name string, f LLMFactory) { r.locked(func() { r.llm[name] = f }) }

// RegisterSTT adds a speech recogniser factory under name.
func (r *Registry) RegisterSTT(name string, f STTFactory) { r.locked(func() { r.stt[name] = f }) }

// RegisterTTS adds a speech synthesiser factory under name.
func (r *Registry) RegisterTTS(name string, f TTSFactory) { r.locked(func() { r.tts[name] = f }) }

// RegisterStore adds the store factory for driver.
func (r *Registry) RegisterStore(driver StoreDriver, f StoreFactory) {
	r.locked(func() { r.store[driver] = f })
}

func (r *Registry) locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Names lists the registered names per kind ("llm", "stt", "tts",
// "store"), each sorted.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"llm":   r.llm.names(),
		"stt":   r.stt.names(),
		"tts":   r.tts.names(),
		"store": r.store.names(),
	}
}

// CreateLLM builds the LLM provider named by entry.
func (r *Registry) CreateLLM(ctx context.Context, entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	f, err := r.llm.lookup("llm", entry.Name)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return f(ctx, entry)
}

// CreateSTT builds the speech recogniser named by entry.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	f, err := r.stt.lookup("stt", entry.Name)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return f(entry)
}

// CreateTTS builds the speech synthesiser named by entry.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	f, err := r.tts.lookup("tts", entry.Name)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return f(entry)
}

// CreateStore opens the store for cfg.Driver.
func (r *Registry) CreateStore(ctx context.Context, cfg StoreConfig) (conversation.Store, error) {
	r.mu.RLock()
	f, err := r.store.lookup("store", cfg.Driver)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return f(ctx, cfg)
}
