// Package tui is the terminal front end: a bubbletea model that renders
// orchestrator snapshots and maps keys onto orchestrator actions.
//
// Terminals report key presses but not releases. Hold-to-talk is emulated
// from key repeat: the talk key is considered released once no repeat has
// arrived for [HoldTimeout].
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Pavlo4242/bluethai/internal/orchestrator"
	"github.com/Pavlo4242/bluethai/internal/persona"
)

// HoldTimeout must exceed the terminal's initial key-repeat delay.
const HoldTimeout = 600 * time.Millisecond

// Controller is the set of orchestrator actions the TUI drives.
// *orchestrator.Orchestrator satisfies it.
type Controller interface {
	Subscribe(ctx context.Context) <-chan orchestrator.State

	StartListening()
	Press()
	Release()
	SwapLanguage()
	Speak(text string, isEnglish bool)

	SetAPIKeyName(name string)
	SetModel(m persona.ModelSelection)
	SetPersona(s persona.Style)
	SetInputMode(m persona.InputMode)
	SetPlaybackEnabled(enabled bool)
	SetFontSize(size int)
	ClearError()

	StartNewSession()
	LoadSession(id string)
	DeleteSession(id string)
}

// TextInput accepts typed text in place of speech.
type TextInput interface {
	Submit(text string)
}

var _ Controller = (*orchestrator.Orchestrator)(nil)

// mode is what the keyboard currently drives.
type mode int

const (
	modeConversation mode = iota
	modeTyping
	modeSessions
)

// Model is the root bubbletea model.
type Model struct {
	ctl    Controller
	text   TextInput
	states <-chan orchestrator.State

	state orchestrator.State
	ready bool

	mode  mode
	draft []rune

	// Hold-to-talk emulation.
	holding bool
	holdSeq int

	// Session panel.
	cursor        int
	confirmDelete string

	width  int
	height int
}

// New returns a Model subscribed to ctl's snapshots until ctx is done.
// text may be nil, which disables typed input.
func New(ctx context.Context, ctl Controller, text TextInput) Model {
	return Model{
		ctl:    ctl,
		text:   text,
		states: ctl.Subscribe(ctx),
	}
}

// Init starts reading snapshots.
func (m Model) Init() tea.Cmd {
	return waitForState(m.states)
}

func waitForState(ch <-chan orchestrator.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return stateClosedMsg{}
		}
		return stateMsg{State: s}
	}
}

func holdExpiredCmd(seq int) tea.Cmd {
	return tea.Tick(HoldTimeout, func(time.Time) tea.Msg {
		return holdExpiredMsg{Seq: seq}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		m.state = msg.State
		m.ready = true
		m.clampCursor()
		return m, waitForState(m.states)

	case stateClosedMsg:
		return m, tea.Quit

	case holdExpiredMsg:
		if m.holding && msg.Seq == m.holdSeq {
			m.holding = false
			m.ctl.Release()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == keyCtrlC {
		return m.quit()
	}
	switch m.mode {
	case modeTyping:
		return m.handleTypingKey(msg)
	case modeSessions:
		return m.handleSessionsKey(msg)
	}

	s := m.state
	switch msg.String() {
	case keyQuit:
		return m.quit()

	case keyTalk:
		return m.talk()

	case keyType:
		if m.text != nil {
			m.mode = modeTyping
			m.draft = m.draft[:0]
		}

	case keySwap:
		m.ctl.SwapLanguage()

	case keyPersona:
		m.ctl.SetPersona(s.Persona.Next())

	case keyModel:
		m.ctl.SetModel(s.Model.NextVersion())

	case keyModelTier:
		next := s.Model
		next.Pro = !next.Pro
		m.ctl.SetModel(next)

	case keyAPIKey:
		if name, ok := nextName(s.APIKeyNames, s.APIKeyName); ok {
			m.ctl.SetAPIKeyName(name)
		}

	case keyPlayback:
		m.ctl.SetPlaybackEnabled(!s.PlaybackEnabled)

	case keyReplay, keyReplaySrc:
		if text, english, ok := m.replayText(msg.String() == keyReplaySrc); ok {
			m.ctl.Speak(text, english)
		}

	case keyInputMode:
		if s.InputMode == persona.Hold {
			m.ctl.SetInputMode(persona.Tap)
		} else {
			m.ctl.SetInputMode(persona.Hold)
		}

	case keyFontUp:
		m.ctl.SetFontSize(s.FontSize + 1)

	case keyFontDown:
		m.ctl.SetFontSize(s.FontSize - 1)

	case keyNewSession:
		m.ctl.StartNewSession()

	case keySessions:
		m.mode = modeSessions
		m.cursor = m.currentSessionIndex()
		m.confirmDelete = ""

	case keyClearErrors, keyEsc:
		if s.Err != "" {
			m.ctl.ClearError()
		}
	}
	return m, nil
}

// talk handles the talk key. In hold mode the first press starts listening
// and later repeats only postpone the emulated release.
func (m Model) talk() (tea.Model, tea.Cmd) {
	if m.state.InputMode != persona.Hold {
		m.ctl.Press()
		return m, nil
	}
	if !m.holding {
		m.holding = true
		m.ctl.Press()
	}
	m.holdSeq++
	return m, holdExpiredCmd(m.holdSeq)
}

// replayText picks the text to read aloud again: the streaming translation if
// one is running, otherwise the newest entry. source selects the spoken side
// over the translated one.
func (m Model) replayText(source bool) (text string, english, ok bool) {
	s := m.state
	if st := s.Streaming; st != nil {
		if source {
			return st.Source, s.InputEnglish, st.Source != ""
		}
		return st.Translated, !s.InputEnglish, st.Translated != ""
	}
	if len(s.Entries) == 0 {
		return "", false, false
	}
	e := s.Entries[len(s.Entries)-1]
	english = e.FromEnglish == source
	if english {
		return e.EnglishText, true, e.EnglishText != ""
	}
	return e.ThaiText, false, e.ThaiText != ""
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.holding {
		m.holding = false
		m.ctl.Release()
	}
	return m, tea.Quit
}

func (m Model) handleTypingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		line := string(m.draft)
		m.draft = nil
		m.mode = modeConversation
		if line != "" {
			m.text.Submit(line)
			m.ctl.StartListening()
		}
	case tea.KeyEsc:
		m.draft = nil
		m.mode = modeConversation
	case tea.KeyBackspace:
		if len(m.draft) > 0 {
			m.draft = m.draft[:len(m.draft)-1]
		}
	case tea.KeyCtrlU:
		m.draft = m.draft[:0]
	case tea.KeySpace:
		m.draft = append(m.draft, ' ')
	case tea.KeyRunes:
		m.draft = append(m.draft, msg.Runes...)
	}
	return m, nil
}

func (m Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.state.Sessions
	key := msg.String()
	if key != keyDelete {
		m.confirmDelete = ""
	}
	switch key {
	case keyQuit:
		return m.quit()

	case keySessions, keyEsc:
		m.mode = modeConversation

	case keyUp, keyK:
		if m.cursor > 0 {
			m.cursor--
		}

	case keyDown, keyJ:
		if m.cursor < len(sessions)-1 {
			m.cursor++
		}

	case keyType:
		if m.cursor < len(sessions) {
			m.ctl.LoadSession(sessions[m.cursor].ID)
			m.mode = modeConversation
		}

	case keyNewSession:
		m.ctl.StartNewSession()
		m.mode = modeConversation

	case keyDelete:
		if m.cursor >= len(sessions) {
			return m, nil
		}
		id := sessions[m.cursor].ID
		if m.confirmDelete != id {
			m.confirmDelete = id
			return m, nil
		}
		m.confirmDelete = ""
		m.ctl.DeleteSession(id)
	}
	return m, nil
}

func (m Model) currentSessionIndex() int {
	for i, s := range m.state.Sessions {
		if s.ID == m.state.CurrentSessionID {
			return i
		}
	}
	return 0
}

func (m *Model) clampCursor() {
	m.cursor = max(0, min(m.cursor, len(m.state.Sessions)-1))
}

// nextName returns the name after cur in names, wrapping around.
func nextName(names []string, cur string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	for i, n := range names {
		if n == cur {
			return names[(i+1)%len(names)], true
		}
	}
	return names[0], true
}
