package speech

import "context"

// Silent is an [Output] for when no synthesiser is configured. It reports
// itself unavailable and drops every utterance.
type Silent struct{}

var _ Output = Silent{}

// Init implements [Output].
func (Silent) Init(_ context.Context, ready func(Readiness)) { go ready(Readiness{}) }

// Speak implements [Output].
func (Silent) Speak(string, bool) {}

// Close implements [Output].
func (Silent) Close() error { return nil }
