package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Pavlo4242/bluethai/internal/orchestrator"
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	if !m.ready {
		return titleStyle.Render("BLUETHAI") + dimStyle.Render("  loading conversations...")
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))

	if m.mode == modeSessions {
		sections = append(sections, m.renderSessions(m.contentHeight()))
	} else {
		sections = append(sections, m.renderConversation(m.contentHeight()))
	}

	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))
	if m.state.Err != "" {
		sections = append(sections, errorStyle.Render("Error: ")+errorTextStyle.Render(m.state.Err))
	}
	if m.mode == modeTyping {
		sections = append(sections, promptStyle.Render(m.languages()+" > ")+string(m.draft)+"▌")
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

// contentHeight leaves room for header, status, dividers, error, prompt and
// footer.
func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	return max(5, m.height-7)
}

func (m Model) languages() string {
	if m.state.InputEnglish {
		return "EN → TH"
	}
	return "TH → EN"
}

func (m Model) renderHeader() string {
	s := m.state
	playback := "MUTED"
	if s.PlaybackEnabled {
		playback = "SPEAK"
	}
	badges := []string{
		s.Persona.String(),
		s.Model.Identifier(),
		s.APIKeyName,
		s.InputMode.String(),
		playback,
		fmt.Sprintf("%dpt", s.FontSize),
	}
	out := titleStyle.Render("BLUETHAI") + "  " + selectedStyle.Render(m.languages())
	for _, b := range badges {
		if b == "" {
			continue
		}
		out += " " + badgeStyle.Render(b)
	}
	return out
}

func (m Model) renderStatusBar() string {
	s := m.state
	var dot string
	if s.Listening {
		dot = listeningStyle.Render("● LISTENING")
	} else {
		dot = idleStyle.Render("○ IDLE")
	}
	if m.holding {
		dot += dimStyle.Render(" (holding)")
	}

	var tts string
	switch {
	case !s.PlaybackEnabled:
	case s.TTSReady:
		tts = dimStyle.Render("  voice ready")
	case !s.TTS.OK:
		tts = dimStyle.Render("  voice unavailable")
	default:
		var missing []string
		if !s.TTS.English {
			missing = append(missing, "English")
		}
		if !s.TTS.Thai {
			missing = append(missing, "Thai")
		}
		tts = dimStyle.Render("  no voice for " + strings.Join(missing, ", "))
	}

	var streaming string
	if s.Streaming != nil {
		streaming = "  " + interimStyle.Render("⟳ translating")
	}
	return dot + tts + streaming
}

func (m Model) renderConversation(height int) string {
	s := m.state
	width := max(20, m.width-4)

	var lines []string
	if len(s.Entries) == 0 && s.Streaming == nil && s.InterimText == "" {
		lines = append(lines, "", dimStyle.Render("  "+m.emptyHint()))
	}
	for _, e := range s.Entries {
		lines = append(lines, renderEntry(e, width, m.spacing())...)
	}
	if st := s.Streaming; st != nil {
		lines = append(lines, renderPair("", st.Source, st.Translated+"▌", width)...)
	}
	if s.InterimText != "" {
		for _, wl := range wrapText(s.InterimText+"…", width) {
			lines = append(lines, "  "+interimStyle.Render(wl))
		}
	}

	// Follow the newest line.
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) emptyHint() string {
	if m.state.InputMode == persona.Hold {
		return "Hold Space to talk, or press Enter to type"
	}
	return "Press Space to talk, or press Enter to type"
}

// spacing puts blank lines between entries as the font size grows.
func (m Model) spacing() int {
	return (m.state.FontSize - orchestrator.MinFontSize) / 8
}

func renderEntry(e conversation.Entry, width, spacing int) []string {
	ts := e.Timestamp.Local().Format("15:04")
	lines := renderPair(ts, e.SourceText(), e.TranslatedText(), width)
	for range spacing {
		lines = append(lines, "")
	}
	return lines
}

func renderPair(ts, source, translated string, width int) []string {
	prefix := "      "
	if ts != "" {
		prefix = timestampStyle.Render(ts) + " "
	}
	textWidth := max(10, width-6)

	var lines []string
	for i, wl := range wrapText(source, textWidth) {
		if i == 0 {
			lines = append(lines, "  "+prefix+sourceStyle.Render(wl))
			continue
		}
		lines = append(lines, "        "+sourceStyle.Render(wl))
	}
	for _, wl := range wrapText(translated, textWidth) {
		lines = append(lines, "        "+translatedStyle.Render(wl))
	}
	return lines
}

func (m Model) renderSessions(height int) string {
	title := panelTitleStyle.Render(fmt.Sprintf("SESSIONS (%d)", len(m.state.Sessions)))
	width := max(20, m.width-4)

	var items []string

	for i, p := range m.state.Sessions {
		marker := "  "
		if p.ID == m.state.CurrentSessionID {
			marker = "• "
		}
		line := p.StartTime.Local().Format("2006-01-02 15:04") + "  " + p.PreviewText
		line = truncateToWidth(marker+line, width)
		switch {
		case i == m.cursor && m.confirmDelete == p.ID:
			line = errorStyle.Render("> "+line) + errorTextStyle.Render("  press d again to delete")
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		default:
			line = "  " + line
		}
		items = append(items, line)
	}

	// Keep the cursor in view.
	if slots := height - 1; len(items) > slots {
		start := min(max(0, m.cursor-slots+1), len(items)-slots)
		items = items[start : start+slots]
	}
	lines := append([]string{title}, items...)
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var pairs [][2]string
	switch m.mode {
	case modeTyping:
		pairs = [][2]string{{"Enter", "Translate"}, {"Esc", "Cancel"}}
	case modeSessions:
		pairs = [][2]string{
			{"j/k", "Move"}, {"Enter", "Open"}, {"d", "Delete"},
			{"n", "New"}, {"Tab", "Back"}, {"q", "Quit"},
		}
	default:
		talk := "Hold"
		if m.state.InputMode == persona.Tap {
			talk = "Talk"
		}
		pairs = [][2]string{
			{"Space", talk}, {"Enter", "Type"}, {"s", "Swap"}, {"p", "Persona"},
			{"m/M", "Model"}, {"a", "Key"}, {"v", "Voice"}, {"r/R", "Replay"}, {"i", "Mode"},
			{"+/-", "Size"}, {"Tab", "Sessions"}, {"n", "New"}, {"q", "Quit"},
		}
		if m.state.Err != "" {
			pairs = append(pairs, [2]string{"c", "Dismiss"})
		}
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, footerKeyStyle.Render(p[0])+footerDescStyle.Render(" "+p[1]))
	}
	return strings.Join(parts, "  ")
}

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case lipgloss.Width(current)+1+lipgloss.Width(word) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
