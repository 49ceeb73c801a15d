package persona

import (
	"maps"
	"slices"
)

// DefaultKeyName is the API key selected on first launch.
const DefaultKeyName = "Key 1"

// Keys is the named set of API keys the user can switch between. It is an
// immutable value: callers replace the whole set rather than mutating it.
type Keys map[string]string

// Lookup returns the key stored under name, or "" when there is none.
func (k Keys) Lookup(name string) string {
	return k[name]
}

// Names returns the key names in sorted order.
func (k Keys) Names() []string {
	return slices.Sorted(maps.Keys(k))
}

// Clone returns a copy of k.
func (k Keys) Clone() Keys {
	return maps.Clone(k)
}

// Settings are the user-facing inputs that determine the translator configuration.
type Settings struct {
	APIKeyName   string
	Model        ModelSelection
	Style        Style
	InputEnglish bool
}

// ClientConfig is the translation client configuration derived from Settings.
type ClientConfig struct {
	APIKey      string
	Model       string
	Instruction string
}

// Resolve derives the ClientConfig for s. It is deterministic: equal inputs
// always yield equal configs. A missing key name yields an empty APIKey,
// which leaves the translator uninitialised.
func Resolve(s Settings, keys Keys) ClientConfig {
	return ClientConfig{
		APIKey:      keys.Lookup(s.APIKeyName),
		Model:       s.Model.Identifier(),
		Instruction: s.Style.Instruction(s.InputEnglish),
	}
}
