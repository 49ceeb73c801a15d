package config_test

import (
	"slices"
	"testing"

	"github.com/Pavlo4242/bluethai/internal/config"
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/pkg/audio"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got := cfg.Keys().Names(); !slices.Equal(got, config.DefaultKeyNames) {
		t.Errorf("key names: got %v, want %v", got, config.DefaultKeyNames)
	}
	if cfg.Translator.APIKeyName != persona.DefaultKeyName {
		t.Errorf("api_key_name: got %q", cfg.Translator.APIKeyName)
	}
	if !*cfg.Translator.InputEnglish || !*cfg.Translator.Playback {
		t.Error("input_english and playback default to true")
	}
	if cfg.Translator.FontSize != config.DefaultFontSize {
		t.Errorf("font_size: got %d", cfg.Translator.FontSize)
	}
	if cfg.Store.Driver != config.StoreSQLite || cfg.Store.DSN != config.DefaultStoreDSN {
		t.Errorf("store: got %+v", cfg.Store)
	}
	if cfg.Providers.LLM.Name != "gemini" || cfg.Providers.STT.Name != "deepgram" || cfg.Providers.TTS.Name != "elevenlabs" {
		t.Errorf("providers: got %+v", cfg.Providers)
	}
}

func TestTranslatorSettings(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, sampleYAML)

	style, mode, model := cfg.Translator.Settings()
	if style != persona.HiSo {
		t.Errorf("style: got %v, want HISO", style)
	}
	if mode != persona.Tap {
		t.Errorf("mode: got %v, want TAP", mode)
	}
	if got := model.Identifier(); got != "gemini-2.0-pro" {
		t.Errorf("model: got %q, want gemini-2.0-pro", got)
	}
}

func TestTranslatorSettings_DefaultModel(t *testing.T) {
	t.Parallel()
	_, _, model := config.TranslatorConfig{}.Settings()
	if model != persona.DefaultModel {
		t.Errorf("model: got %v, want %v", model, persona.DefaultModel)
	}
}

func TestLoadFromReader_ExpandsSecrets(t *testing.T) {
	t.Setenv("BLUETHAI_TEST_KEY", "from-env")
	t.Setenv("BLUETHAI_TEST_DG", "dg-env")

	cfg := mustLoad(t, "api_keys:\n  \"Key 1\": ${BLUETHAI_TEST_KEY}\nproviders:\n  stt:\n    api_key: $BLUETHAI_TEST_DG\n")
	if got := cfg.Keys().Lookup("Key 1"); got != "from-env" {
		t.Errorf("Key 1: got %q", got)
	}
	if cfg.Providers.STT.APIKey != "dg-env" {
		t.Errorf("stt api_key: got %q", cfg.Providers.STT.APIKey)
	}
}

func TestAudioConfig(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, sampleYAML)

	in := cfg.Audio.CaptureInput()
	if in.InputFormat != "alsa" || in.Device != "hw:1" || in.Format != audio.Speech {
		t.Errorf("capture: got %+v", in)
	}
	out := cfg.Audio.PlayerOutput()
	if out.Command != "aplay" || len(out.Args) != 7 {
		t.Errorf("player: got %+v", out)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "stt", "tts"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}

func TestExampleConfigLoads(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("../../bluethai.example.yaml")
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if cfg.Providers.LLMFallback.Name != "openai" || cfg.Translator.APIKeyName != "Key 1" {
		t.Errorf("unexpected example values: %+v %+v", cfg.Providers.LLMFallback, cfg.Translator)
	}
	if _, mode, model := cfg.Translator.Settings(); mode != persona.Hold || model.Identifier() != "gemini-2.0-flash" {
		t.Errorf("settings: mode %v, model %q", mode, model.Identifier())
	}
}
