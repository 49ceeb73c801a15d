package orchestrator

import (
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/speech"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// Font size bounds, in points.
const (
	DefaultFontSize = 18
	MinFontSize     = 12
	MaxFontSize     = 32
)

// StreamingTranslation is the translation in progress: the recognised source
// text and the translation received so far.
type StreamingTranslation struct {
	Source     string
	Translated string
}

// State is an immutable snapshot of everything the user interface shows.
// Slices are shared between snapshots and must not be modified.
type State struct {
	InputEnglish    bool
	Listening       bool
	PlaybackEnabled bool
	InputMode       persona.InputMode

	// InterimText is the best recognition hypothesis of the current attempt.
	InterimText string

	// Streaming is nil when no translation is running.
	Streaming *StreamingTranslation

	// CurrentSessionID is empty until the session history has loaded.
	CurrentSessionID string
	Entries          []conversation.Entry
	Sessions         []conversation.SessionPreview

	APIKeyName  string
	APIKeyNames []string
	Model       persona.ModelSelection
	Persona     persona.Style

	// Err is the latest user-visible error, or empty.
	Err string

	// TTSReady is true when both languages can be spoken.
	TTSReady bool
	TTS      speech.Readiness

	FontSize int
}

// Preferences are the user settings an orchestrator starts with.
type Preferences struct {
	APIKeyName      string
	Model           persona.ModelSelection
	Persona         persona.Style
	InputEnglish    bool
	PlaybackEnabled bool
	InputMode       persona.InputMode
	FontSize        int
}

// DefaultPreferences returns the first-launch settings.
func DefaultPreferences() Preferences {
	return Preferences{
		APIKeyName:      persona.DefaultKeyName,
		Model:           persona.DefaultModel,
		Persona:         persona.Pattaya,
		InputEnglish:    true,
		PlaybackEnabled: true,
		InputMode:       persona.Hold,
		FontSize:        DefaultFontSize,
	}
}

// core holds the fields the actor owns. It is published as one cell.
type core struct {
	Preferences

	listening bool
	interim   string
	streaming *StreamingTranslation
	sessionID string
	keyNames  []string
	err       string
}

func (c core) settings() persona.Settings {
	return persona.Settings{
		APIKeyName:   c.APIKeyName,
		Model:        c.Model,
		Style:        c.Persona,
		InputEnglish: c.InputEnglish,
	}
}

// sessionEntries tags an entries view with the session it was queried for.
type sessionEntries struct {
	sessionID string
	entries   []conversation.Entry
}

// compose builds the public snapshot. Entries queried for a session other
// than the current one are not shown.
func compose(c core, e sessionEntries, previews []conversation.SessionPreview, tts speech.Readiness) State {
	s := State{
		InputEnglish:     c.InputEnglish,
		Listening:        c.listening,
		PlaybackEnabled:  c.PlaybackEnabled,
		InputMode:        c.InputMode,
		InterimText:      c.interim,
		Streaming:        c.streaming,
		CurrentSessionID: c.sessionID,
		Sessions:         previews,
		APIKeyName:       c.APIKeyName,
		APIKeyNames:      c.keyNames,
		Model:            c.Model,
		Persona:          c.Persona,
		Err:              c.err,
		TTSReady:         tts.Ready(),
		TTS:              tts,
		FontSize:         c.FontSize,
	}
	if e.sessionID != "" && e.sessionID == c.sessionID {
		s.Entries = e.entries
	}
	return s
}

func clampFontSize(size int) int {
	return min(max(size, MinFontSize), MaxFontSize)
}
