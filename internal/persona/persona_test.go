package persona_test

import (
	"strings"
	"testing"

	"github.com/Pavlo4242/bluethai/internal/persona"
)

func TestStyle_InstructionTotal(t *testing.T) {
	t.Parallel()

	for _, s := range persona.Styles {
		for _, toThai := range []bool{true, false} {
			if got := s.Instruction(toThai); strings.TrimSpace(got) == "" {
				t.Errorf("%s (toThai=%v): empty instruction", s, toThai)
			}
		}
		if s.Instruction(true) == s.Instruction(false) {
			t.Errorf("%s: both directions share the same instruction", s)
		}
	}
}

func TestStyle_DirectInstructions(t *testing.T) {
	t.Parallel()

	if got, want := persona.Direct.Instruction(true), "Translate the following English text to Thai. Output only the translation."; got != want {
		t.Errorf("Direct toThai = %q, want %q", got, want)
	}
	if got, want := persona.Direct.Instruction(false), "Translate the following Thai text to English. Output only the translation."; got != want {
		t.Errorf("Direct toEnglish = %q, want %q", got, want)
	}
}

func TestParseStyle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    persona.Style
		wantErr bool
	}{
		{"PATTAYA", persona.Pattaya, false},
		{"vulgar", persona.Vulgar, false},
		{"HiSo", persona.HiSo, false},
		{"direct", persona.Direct, false},
		{"pirate", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := persona.ParseStyle(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStyle(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseStyle(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestStyle_NextCycles(t *testing.T) {
	t.Parallel()

	s := persona.Pattaya
	seen := map[persona.Style]bool{}
	for range persona.Styles {
		seen[s] = true
		s = s.Next()
	}
	if s != persona.Pattaya {
		t.Errorf("cycle did not return to PATTAYA, got %s", s)
	}
	if len(seen) != len(persona.Styles) {
		t.Errorf("cycle visited %d styles, want %d", len(seen), len(persona.Styles))
	}
}

func TestModelSelection_Identifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sel  persona.ModelSelection
		want string
	}{
		{persona.DefaultModel, "gemini-1.5-flash"},
		{persona.ModelSelection{Version: 1.5, Pro: true}, "gemini-1.5-pro"},
		{persona.ModelSelection{Version: 2.0}, "gemini-2.0-flash"},
		{persona.ModelSelection{Version: 2.5, Pro: true}, "gemini-2.5-pro"},
	}
	for _, tt := range tests {
		if got := tt.sel.Identifier(); got != tt.want {
			t.Errorf("%+v.Identifier() = %q, want %q", tt.sel, got, tt.want)
		}
	}
}

func TestParseInputMode(t *testing.T) {
	t.Parallel()

	if m, err := persona.ParseInputMode("TAP"); err != nil || m != persona.Tap {
		t.Errorf("ParseInputMode(TAP) = %v, %v", m, err)
	}
	if m, err := persona.ParseInputMode(""); err != nil || m != persona.Hold {
		t.Errorf("ParseInputMode(\"\") = %v, %v", m, err)
	}
	if _, err := persona.ParseInputMode("push"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	keys := persona.Keys{"Key 1": "k1", "Key 2": "k2"}
	s := persona.Settings{
		APIKeyName:   "Key 2",
		Model:        persona.ModelSelection{Version: 1.5, Pro: true},
		Style:        persona.Direct,
		InputEnglish: false,
	}

	got := persona.Resolve(s, keys)
	want := persona.ClientConfig{
		APIKey:      "k2",
		Model:       "gemini-1.5-pro",
		Instruction: persona.Direct.Instruction(false),
	}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
	if again := persona.Resolve(s, keys); again != got {
		t.Errorf("Resolve is not deterministic: %+v != %+v", again, got)
	}

	s.APIKeyName = "Key 9"
	if got := persona.Resolve(s, keys); got.APIKey != "" {
		t.Errorf("unknown key name resolved to %q, want empty", got.APIKey)
	}
}

func TestKeys_Names(t *testing.T) {
	t.Parallel()

	keys := persona.Keys{"Key 3": "", "Key 1": "a", "Key 2": "b"}
	got := keys.Names()
	want := []string{"Key 1", "Key 2", "Key 3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestModelSelection_NextVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   persona.ModelSelection
		want persona.ModelSelection
	}{
		{persona.ModelSelection{Version: 1.5}, persona.ModelSelection{Version: 2.0}},
		{persona.ModelSelection{Version: 2.0, Pro: true}, persona.ModelSelection{Version: 2.5, Pro: true}},
		{persona.ModelSelection{Version: 2.5}, persona.ModelSelection{Version: 1.5}},
		{persona.ModelSelection{Version: 3.0}, persona.ModelSelection{Version: 1.5}},
	}
	for _, tt := range tests {
		if got := tt.in.NextVersion(); got != tt.want {
			t.Errorf("%v.NextVersion() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
