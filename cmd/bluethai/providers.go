package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Pavlo4242/bluethai/internal/config"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
	"github.com/Pavlo4242/bluethai/pkg/conversation/postgres"
	"github.com/Pavlo4242/bluethai/pkg/conversation/sqlite"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm/anyllm"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm/gemini"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm/openai"
	"github.com/Pavlo4242/bluethai/pkg/provider/stt"
	"github.com/Pavlo4242/bluethai/pkg/provider/stt/deepgram"
	"github.com/Pavlo4242/bluethai/pkg/provider/tts"
	"github.com/Pavlo4242/bluethai/pkg/provider/tts/elevenlabs"
)

// registerBuiltinProviders wires all built-in factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// gemini talks to the Gemini API directly so safety thresholds apply.
	reg.RegisterLLM("gemini", func(ctx context.Context, entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		if t := optString(entry.Options, "safety_threshold"); t != "" {
			opts = append(opts, gemini.WithSafetyThreshold(t))
		}
		return gemini.New(ctx, entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(_ context.Context, entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d, err := optDuration(entry.Options, "timeout"); err != nil {
			return nil, err
		} else if d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the any-llm pattern: optional API key and
	// optional base URL. "gemini-anyllm" reaches Gemini through any-llm.
	for _, name := range []string{"gemini-anyllm", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		backend := name
		if name == "gemini-anyllm" {
			backend = "gemini"
		}
		reg.RegisterLLM(name, func(_ context.Context, entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if d, err := optDuration(entry.Options, "endpointing"); err != nil {
			return nil, err
		} else if d > 0 {
			opts = append(opts, deepgram.WithEndpointing(d))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Stores ────────────────────────────────────────────────────────────────

	reg.RegisterStore(config.StoreSQLite, func(ctx context.Context, c config.StoreConfig) (conversation.Store, error) {
		return sqlite.Open(ctx, c.DSN)
	})
	reg.RegisterStore(config.StorePostgres, func(ctx context.Context, c config.StoreConfig) (conversation.Store, error) {
		return postgres.NewStore(ctx, c.DSN)
	})

	for kind, names := range reg.Names() {
		slog.Debug("providers registered", "kind", kind, "names", names)
	}
}

// optString returns the string option key, or "".
func optString(opts map[string]any, key string) string {
	if v, ok := opts[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// optDuration parses the option key as a duration ("300ms"). Integers are
// taken as milliseconds.
func optDuration(opts map[string]any, key string) (time.Duration, error) {
	switch v := opts[key].(type) {
	case nil:
		return 0, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("option %q: unsupported type %T", key, v)
	}
}
