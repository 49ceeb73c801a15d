package app

import (
	"log/slog"

	"github.com/Pavlo4242/bluethai/internal/config"
	"github.com/Pavlo4242/bluethai/internal/orchestrator"
)

// Preferences converts the translator section into the orchestrator's
// initial settings.
func Preferences(cfg *config.Config) orchestrator.Preferences {
	t := cfg.Translator
	style, mode, model := t.Settings()
	prefs := orchestrator.DefaultPreferences()
	prefs.APIKeyName = t.APIKeyName
	prefs.Model = model
	prefs.Persona = style
	prefs.InputMode = mode
	if t.InputEnglish != nil {
		prefs.InputEnglish = *t.InputEnglish
	}
	if t.Playback != nil {
		prefs.PlaybackEnabled = *t.Playback
	}
	if t.FontSize != 0 {
		prefs.FontSize = t.FontSize
	}
	return prefs
}

// ApplyConfig applies the live-reloadable part of a config change. It is
// the config watcher's callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	o := a.orch
	if d.APIKeysChanged {
		o.SetAPIKeys(new.Keys())
	}

	prefs := Preferences(new)
	cur := o.State()
	t := d.Translator
	if t.APIKeyName {
		o.SetAPIKeyName(prefs.APIKeyName)
	}
	if t.Model {
		o.SetModel(prefs.Model)
	}
	if t.Persona {
		o.SetPersona(prefs.Persona)
	}
	if t.InputEnglish && cur.InputEnglish != prefs.InputEnglish {
		o.SwapLanguage()
	}
	if t.Playback {
		o.SetPlaybackEnabled(prefs.PlaybackEnabled)
	}
	if t.InputMode {
		o.SetInputMode(prefs.InputMode)
	}
	if t.FontSize {
		o.SetFontSize(prefs.FontSize)
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
	}
	a.cfg = new
}

// SlogLevel maps a config log level onto slog's.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
