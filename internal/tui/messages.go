package tui

import "github.com/Pavlo4242/bluethai/internal/orchestrator"

// stateMsg carries a new orchestrator snapshot.
type stateMsg struct {
	State orchestrator.State
}

// stateClosedMsg is sent when the orchestrator stops publishing.
type stateClosedMsg struct{}

// holdExpiredMsg fires when no key repeat has arrived for the talk key since
// the press numbered Seq.
type holdExpiredMsg struct {
	Seq int
}
