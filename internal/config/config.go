// Package config provides the configuration schema, loader, watcher and
// provider registry for the bluethai translation client.
package config

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

// StoreDriver selects the conversation store backend.
type StoreDriver string

const (
	// StoreSQLite keeps the history in a local file (the default).
	StoreSQLite StoreDriver = "sqlite"

	// StorePostgres keeps the history in a PostgreSQL database.
	StorePostgres StoreDriver = "postgres"
)

// IsValid reports whether d is a recognised store driver.
func (d StoreDriver) IsValid() bool {
	return d == StoreSQLite || d == StorePostgres
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Providers  ProvidersConfig   `yaml:"providers"`
	APIKeys    map[string]string `yaml:"api_keys"`
	Translator TranslatorConfig  `yaml:"translator"`
	Voices     VoicesConfig      `yaml:"voices"`
	Store      StoreConfig       `yaml:"store"`
	Audio      AudioConfig       `yaml:"audio"`
}

// ServerConfig holds logging and admin listener settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the admin listener serving /metrics,
	// /healthz and /readyz (e.g. "127.0.0.1:9464"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile receives the logs while the terminal UI owns the screen.
	LogFile string `yaml:"log_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM         ProviderEntry `yaml:"llm"`
	LLMFallback ProviderEntry `yaml:"llm_fallback"`
	STT         ProviderEntry `yaml:"stt"`
	TTS         ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "gemini", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any. The
	// primary LLM ignores it: its key is picked from api_keys by name.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g. "nova-2").
	// The primary LLM ignores it: its model comes from the translator settings.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// TranslatorConfig holds the initial user settings. Changes to this section
// while the client runs are applied live.
type TranslatorConfig struct {
	// APIKeyName selects the key in api_keys used for translations.
	APIKeyName string `yaml:"api_key_name"`

	Model ModelConfig `yaml:"model"`

	// Persona is one of PATTAYA, VULGAR, HISO, DIRECT.
	Persona string `yaml:"persona"`

	// InputEnglish selects English (true) or Thai as the spoken language.
	InputEnglish *bool `yaml:"input_english"`

	// Playback speaks finished translations aloud.
	Playback *bool `yaml:"playback"`

	// InputMode is "hold" or "tap".
	InputMode string `yaml:"input_mode"`

	FontSize int `yaml:"font_size"`
}

// ModelConfig selects the Gemini model by version and tier.
type ModelConfig struct {
	Version float64 `yaml:"version"`
	Pro     bool    `yaml:"pro"`
}

// VoicesConfig pins synthesiser voices per language. Empty picks the first
// voice the provider lists for the language.
type VoicesConfig struct {
	English string `yaml:"english"`
	Thai    string `yaml:"thai"`
}

// StoreConfig selects where conversation history is kept.
type StoreConfig struct {
	Driver StoreDriver `yaml:"driver"`

	// DSN is a file path (or ":memory:") for sqlite and a connection string
	// for postgres.
	DSN string `yaml:"dsn"`
}

// AudioConfig configures the local microphone and speaker.
type AudioConfig struct {
	Capture CaptureConfig `yaml:"capture"`
	Player  PlayerConfig  `yaml:"player"`
}

// CaptureConfig drives ffmpeg as the microphone.
type CaptureConfig struct {
	Command     string `yaml:"command"`
	InputFormat string `yaml:"input_format"`
	Device      string `yaml:"device"`
}

// PlayerConfig is the external command PCM is piped into. Args may contain
// {rate} and {channels}.
type PlayerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}
