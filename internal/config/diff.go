package config

import (
	"maps"
	"reflect"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked individually;
// everything else is summarised by RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	APIKeysChanged bool

	// Translator lists the translator settings that changed.
	Translator TranslatorDiff

	// RestartRequired lists the sections that changed but are only read at
	// startup (providers, voices, store, audio, admin listener).
	RestartRequired []string
}

// TranslatorDiff flags each translator setting that changed.
type TranslatorDiff struct {
	APIKeyName   bool
	Model        bool
	Persona      bool
	InputEnglish bool
	Playback     bool
	InputMode    bool
	FontSize     bool
}

// Any reports whether any translator setting changed.
func (d TranslatorDiff) Any() bool {
	return d.APIKeyName || d.Model || d.Persona || d.InputEnglish || d.Playback || d.InputMode || d.FontSize
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.APIKeysChanged && !d.Translator.Any() && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.APIKeysChanged = !maps.Equal(old.APIKeys, new.APIKeys)
	d.Translator = diffTranslator(old.Translator, new.Translator)

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFile != new.Server.LogFile {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Voices != new.Voices {
		d.RestartRequired = append(d.RestartRequired, "voices")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if !reflect.DeepEqual(old.Audio, new.Audio) {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	return d
}

func diffTranslator(old, new TranslatorConfig) TranslatorDiff {
	return TranslatorDiff{
		APIKeyName:   old.APIKeyName != new.APIKeyName,
		Model:        old.Model != new.Model,
		Persona:      old.Persona != new.Persona,
		InputEnglish: !equalPtr(old.InputEnglish, new.InputEnglish),
		Playback:     !equalPtr(old.Playback, new.Playback),
		InputMode:    old.InputMode != new.InputMode,
		FontSize:     old.FontSize != new.FontSize,
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
