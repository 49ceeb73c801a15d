// Package types defines the shared types used across bluethai packages.
//
// These types are the common vocabulary between speech providers, the
// translation client and the orchestrator. Each package owns its own domain
// types; only data that crosses package boundaries lives here.
package types

import "time"

// Language identifies one side of the English/Thai conversation.
type Language int

const (
	// English is the English side of the conversation.
	English Language = iota

	// Thai is the Thai side of the conversation.
	Thai
)

// String returns the human-readable language name.
func (l Language) String() string {
	switch l {
	case English:
		return "English"
	case Thai:
		return "Thai"
	default:
		return "unknown"
	}
}

// Tag returns the BCP-47 tag handed to speech recognisers and synthesisers.
func (l Language) Tag() string {
	if l == Thai {
		return "th-TH"
	}
	return "en-US"
}

// Code returns the ISO 639-1 code.
func (l Language) Code() string {
	if l == Thai {
		return "th"
	}
	return "en"
}

// Other returns the opposite side of the conversation.
func (l Language) Other() Language {
	if l == Thai {
		return English
	}
	return Thai
}

// InputLanguage maps the orchestrator's isInputEnglish flag to a Language.
func InputLanguage(inputEnglish bool) Language {
	if inputEnglish {
		return English
	}
	return Thai
}

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial transcript.
	IsFinal bool

	// SpeechFinal marks the end of an utterance: the speaker paused long
	// enough for the recogniser to close the turn. Text may be empty on a
	// pure end-of-utterance marker.
	SpeechFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to stream start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// Message represents a single message sent to an LLM.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool

	// SupportsSafetySettings indicates per-category safety thresholds are honoured.
	SupportsSafetySettings bool
}

// VoiceProfile describes a TTS voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Languages lists the ISO 639-1 codes the voice can speak. Empty means
	// the provider did not report language support.
	Languages []string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64
}

// Speaks reports whether the voice declares support for lang. Voices that
// do not declare any languages are treated as multilingual.
func (v VoiceProfile) Speaks(lang Language) bool {
	if len(v.Languages) == 0 {
		return true
	}
	for _, code := range v.Languages {
		if code == lang.Code() {
			return true
		}
	}
	return false
}
