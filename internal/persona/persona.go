// Package persona maps the user-facing translation settings (persona style,
// model selection, API key name, input language) onto the configuration the
// translation client is built from.
//
// Style and ModelSelection are closed sets with total mapping functions;
// adding a Style without an instruction pair fails the package tests.
package persona

import (
	"fmt"
	"strconv"
	"strings"
)

// Style selects a pair of instruction strings that bias the model's register.
type Style int

const (
	// Pattaya is casual bar-talk: informal, slangy, keeps the tone of the speaker.
	Pattaya Style = iota

	// Vulgar is Pattaya without any softening.
	Vulgar

	// HiSo is the formal high-society register with honorifics.
	HiSo

	// Direct is a plain translation with no persona.
	Direct
)

// Styles lists every Style in display order.
var Styles = []Style{Pattaya, Vulgar, HiSo, Direct}

// String returns the canonical upper-case style name.
func (s Style) String() string {
	switch s {
	case Pattaya:
		return "PATTAYA"
	case Vulgar:
		return "VULGAR"
	case HiSo:
		return "HISO"
	case Direct:
		return "DIRECT"
	default:
		return "Style(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsValid reports whether s is one of the known styles.
func (s Style) IsValid() bool {
	return s >= Pattaya && s <= Direct
}

// Next returns the following style, wrapping around. Used by the TUI to cycle.
func (s Style) Next() Style {
	return Styles[(int(s)+1)%len(Styles)]
}

// ParseStyle parses a style name case-insensitively.
func ParseStyle(name string) (Style, error) {
	for _, s := range Styles {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("persona: unknown style %q", name)
}

// Instruction returns the system instruction for translating in the given
// direction. toThai is true when the speaker's input is English.
func (s Style) Instruction(toThai bool) string {
	pair, ok := instructions[s]
	if !ok {
		pair = instructions[Direct]
	}
	if toThai {
		return pair.toThai
	}
	return pair.toEnglish
}

// InputMode selects how the microphone is driven.
type InputMode int

const (
	// Hold listens while the talk key is held.
	Hold InputMode = iota

	// Tap toggles listening on each press.
	Tap
)

// String returns "HOLD" or "TAP".
func (m InputMode) String() string {
	if m == Tap {
		return "TAP"
	}
	return "HOLD"
}

// ParseInputMode parses "hold" or "tap" case-insensitively.
func ParseInputMode(name string) (InputMode, error) {
	switch strings.ToLower(name) {
	case "hold", "":
		return Hold, nil
	case "tap":
		return Tap, nil
	}
	return Hold, fmt.Errorf("persona: unknown input mode %q", name)
}

// ModelSelection picks a Gemini model by version and tier.
type ModelSelection struct {
	Version float64
	Pro     bool
}

// DefaultModel is gemini-1.5-flash.
var DefaultModel = ModelSelection{Version: 1.5}

// Identifier returns the model name, e.g. "gemini-1.5-flash" or "gemini-2.0-pro".
func (m ModelSelection) Identifier() string {
	tier := "flash"
	if m.Pro {
		tier = "pro"
	}
	return "gemini-" + strconv.FormatFloat(m.Version, 'f', 1, 64) + "-" + tier
}

// String implements fmt.Stringer.
func (m ModelSelection) String() string { return m.Identifier() }

// ModelVersions lists the selectable Gemini versions in display order.
var ModelVersions = []float64{1.5, 2.0, 2.5}

// NextVersion returns m with the following version, wrapping around. An
// unlisted version moves to the first one.
func (m ModelSelection) NextVersion() ModelSelection {
	next := ModelVersions[0]
	for i, v := range ModelVersions {
		if v == m.Version {
			next = ModelVersions[(i+1)%len(ModelVersions)]
			break
		}
	}
	m.Version = next
	return m
}
