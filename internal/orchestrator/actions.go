package orchestrator

import (
	"log/slog"
	"strings"

	"github.com/Pavlo4242/bluethai/internal/persona"
)

func (o *Orchestrator) do(a action) { o.post(a) }

// StartListening starts a recognition attempt in the input language.
func (o *Orchestrator) StartListening() {
	o.do(func(o *Orchestrator) { o.startListening() })
}

// StopListening ends the running attempt. Speech already captured is still
// recognised and translated.
func (o *Orchestrator) StopListening() {
	o.do(func(o *Orchestrator) { o.stopListening() })
}

// ToggleListening starts an attempt, or stops the running one.
func (o *Orchestrator) ToggleListening() {
	o.do(func(o *Orchestrator) {
		if o.attemptActive {
			o.stopListening()
			return
		}
		o.startListening()
	})
}

// Press handles the talk control being pressed: it starts listening in hold
// mode and toggles in tap mode.
func (o *Orchestrator) Press() {
	o.do(func(o *Orchestrator) {
		switch {
		case o.cur.InputMode == persona.Tap && o.attemptActive:
			o.stopListening()
		default:
			o.startListening()
		}
	})
}

// Release handles the talk control being released. It stops listening in
// hold mode.
func (o *Orchestrator) Release() {
	o.do(func(o *Orchestrator) {
		if o.cur.InputMode == persona.Hold {
			o.stopListening()
		}
	})
}

// Speak reads text aloud in English or Thai. It does nothing while playback
// is off.
func (o *Orchestrator) Speak(text string, isEnglish bool) {
	o.do(func(o *Orchestrator) {
		if !o.cur.PlaybackEnabled || strings.TrimSpace(text) == "" {
			return
		}
		o.output.Speak(text, isEnglish)
	})
}

// SwapLanguage switches the input language. A running attempt is abandoned.
func (o *Orchestrator) SwapLanguage() {
	o.do(func(o *Orchestrator) {
		o.abandonListening()
		o.cur.InputEnglish = !o.cur.InputEnglish
		o.reconfigure()
	})
}

// SetAPIKeys replaces the named key set.
func (o *Orchestrator) SetAPIKeys(keys persona.Keys) {
	keys = keys.Clone()
	o.do(func(o *Orchestrator) {
		o.keys = keys
		o.cur.keyNames = keys.Names()
		o.reconfigure()
	})
}

// SetAPIKeyName selects the API key used for translations.
func (o *Orchestrator) SetAPIKeyName(name string) {
	o.do(func(o *Orchestrator) {
		o.cur.APIKeyName = name
		o.reconfigure()
	})
}

// SetModel selects the translation model.
func (o *Orchestrator) SetModel(m persona.ModelSelection) {
	o.do(func(o *Orchestrator) {
		o.cur.Model = m
		o.reconfigure()
	})
}

// SetPersona selects the persona style. Unknown styles are ignored.
func (o *Orchestrator) SetPersona(s persona.Style) {
	o.do(func(o *Orchestrator) {
		if !s.IsValid() {
			slog.Warn("orchestrator: ignoring unknown persona", "persona", s.String())
			return
		}
		o.cur.Persona = s
		o.reconfigure()
	})
}

// SetInputMode selects hold or tap listening.
func (o *Orchestrator) SetInputMode(m persona.InputMode) {
	o.do(func(o *Orchestrator) { o.cur.InputMode = m })
}

// SetPlaybackEnabled turns speaking translations on or off.
func (o *Orchestrator) SetPlaybackEnabled(enabled bool) {
	o.do(func(o *Orchestrator) { o.cur.PlaybackEnabled = enabled })
}

// SetFontSize sets the display font size, clamped to
// [MinFontSize, MaxFontSize].
func (o *Orchestrator) SetFontSize(size int) {
	o.do(func(o *Orchestrator) { o.cur.FontSize = clampFontSize(size) })
}

// ClearError dismisses the current error.
func (o *Orchestrator) ClearError() {
	o.do(func(o *Orchestrator) { o.cur.err = "" })
}

// StartNewSession creates a session and makes it current.
func (o *Orchestrator) StartNewSession() {
	o.do(func(o *Orchestrator) { o.createSession() })
}

// LoadSession makes id the current session.
func (o *Orchestrator) LoadSession(id string) {
	o.do(func(o *Orchestrator) { o.loadSession(id) })
}

// DeleteSession deletes id and its entries. Deleting the current session
// loads the newest remaining one, or creates a new one.
func (o *Orchestrator) DeleteSession(id string) {
	o.do(func(o *Orchestrator) { o.deleteSession(id) })
}
