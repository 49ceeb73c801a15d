package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/pkg/audio"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "gemini-anyllm", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
	"tts": {"elevenlabs"},
}

// DefaultKeyNames are the key slots offered when api_keys is empty.
var DefaultKeyNames = []string{"Key 1", "Key 2", "Key 3", "Key 4"}

// Defaults used by [ApplyDefaults].
const (
	DefaultLogFile  = "bluethai.log"
	DefaultStoreDSN = "bluethai.db"
	DefaultFontSize = 18
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. Environment references such as ${GEMINI_API_KEY} in
// API keys are expanded. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFile == "" {
		cfg.Server.LogFile = DefaultLogFile
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = "gemini"
	}
	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = "deepgram"
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = "elevenlabs"
	}
	if len(cfg.APIKeys) == 0 {
		cfg.APIKeys = make(map[string]string, len(DefaultKeyNames))
		for _, name := range DefaultKeyNames {
			cfg.APIKeys[name] = ""
		}
	}

	t := &cfg.Translator
	if t.APIKeyName == "" {
		t.APIKeyName = persona.DefaultKeyName
	}
	if t.Model.Version == 0 {
		t.Model = ModelConfig{Version: persona.DefaultModel.Version, Pro: t.Model.Pro}
	}
	if t.Persona == "" {
		t.Persona = persona.Pattaya.String()
	}
	if t.InputEnglish == nil {
		t.InputEnglish = ptr(true)
	}
	if t.Playback == nil {
		t.Playback = ptr(true)
	}
	if t.InputMode == "" {
		t.InputMode = "hold"
	}
	if t.FontSize == 0 {
		t.FontSize = DefaultFontSize
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == StoreSQLite {
		cfg.Store.DSN = DefaultStoreDSN
	}
	if cfg.Audio.Player.Command == "" {
		cfg.Audio.Player = PlayerConfig{
			Command: "ffplay",
			Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-f", "s16le", "-ar", "{rate}", "-ac", "{channels}", "-"},
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.LLMFallback.Name != "" && cfg.Providers.LLMFallback.Model == "" {
		errs = append(errs, errors.New("providers.llm_fallback.model is required when a fallback is configured"))
	}

	// Translator settings
	t := cfg.Translator
	for name := range cfg.APIKeys {
		if name == "" {
			errs = append(errs, errors.New("api_keys contains an empty key name"))
		}
	}
	if t.APIKeyName != "" {
		if _, ok := cfg.APIKeys[t.APIKeyName]; !ok {
			errs = append(errs, fmt.Errorf("translator.api_key_name %q is not one of api_keys", t.APIKeyName))
		} else if cfg.APIKeys[t.APIKeyName] == "" {
			slog.Warn("selected API key is empty; translations will fail until it is set", "api_key_name", t.APIKeyName)
		}
	}
	if t.Model.Version < 0 {
		errs = append(errs, fmt.Errorf("translator.model.version %.1f must be positive", t.Model.Version))
	}
	if t.Persona != "" {
		if _, err := persona.ParseStyle(t.Persona); err != nil {
			errs = append(errs, fmt.Errorf("translator.persona %q is invalid; valid values: PATTAYA, VULGAR, HISO, DIRECT", t.Persona))
		}
	}
	if _, err := persona.ParseInputMode(t.InputMode); err != nil {
		errs = append(errs, fmt.Errorf("translator.input_mode %q is invalid; valid values: hold, tap", t.InputMode))
	}
	if t.FontSize != 0 && (t.FontSize < 12 || t.FontSize > 32) {
		slog.Warn("translator.font_size out of range; it will be clamped", "font_size", t.FontSize, "min", 12, "max", 32)
	}

	// Store
	if cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: sqlite, postgres", cfg.Store.Driver))
	}
	if cfg.Store.Driver == StorePostgres && cfg.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required when store.driver is postgres"))
	}

	// Speech providers
	if cfg.Providers.STT.APIKey == "" {
		slog.Warn("providers.stt.api_key is empty; only typed input will work")
	}
	if cfg.Providers.TTS.APIKey == "" {
		slog.Warn("providers.tts.api_key is empty; translations will not be spoken")
	}

	return errors.Join(errs...)
}

// Settings returns the translator section as typed values. It assumes cfg
// passed [Validate]; unparsable values fall back to their defaults.
func (t TranslatorConfig) Settings() (persona.Style, persona.InputMode, persona.ModelSelection) {
	style, err := persona.ParseStyle(t.Persona)
	if err != nil {
		style = persona.Pattaya
	}
	mode, _ := persona.ParseInputMode(t.InputMode)
	model := persona.ModelSelection{Version: t.Model.Version, Pro: t.Model.Pro}
	if model.Version == 0 {
		model.Version = persona.DefaultModel.Version
	}
	return style, mode, model
}

// Keys returns api_keys as a [persona.Keys] value.
func (c *Config) Keys() persona.Keys {
	return persona.Keys(c.APIKeys).Clone()
}

// CaptureInput returns the microphone described by the audio section.
func (a AudioConfig) CaptureInput() *audio.FFmpegInput {
	return &audio.FFmpegInput{
		Command:     a.Capture.Command,
		InputFormat: a.Capture.InputFormat,
		Device:      a.Capture.Device,
		Format:      audio.Speech,
	}
}

// PlayerOutput returns the speaker described by the audio section.
func (a AudioConfig) PlayerOutput() *audio.CommandOutput {
	return &audio.CommandOutput{Command: a.Player.Command, Args: slices.Clone(a.Player.Args)}
}

func expandSecrets(cfg *Config) {
	for name, key := range cfg.APIKeys {
		cfg.APIKeys[name] = os.ExpandEnv(key)
	}
	for _, e := range []*ProviderEntry{&cfg.Providers.LLM, &cfg.Providers.LLMFallback, &cfg.Providers.STT, &cfg.Providers.TTS} {
		e.APIKey = os.ExpandEnv(e.APIKey)
	}
	cfg.Store.DSN = os.ExpandEnv(cfg.Store.DSN)
}

func ptr[T any](v T) *T { return &v }

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
