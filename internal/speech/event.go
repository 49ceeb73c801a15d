// Package speech adapts speech recognition and synthesis providers to the
// turn-based model the orchestrator drives.
//
// A [Source] runs one recognition attempt per activation and reports it as a
// stream of [RecognitionEvent]s: Listening, zero or more Partials, then
// exactly one of Final, Error or Idle, after which the stream closes. An
// [Output] speaks translated text and reports once whether it is able to.
package speech

import (
	"context"
	"fmt"

	"github.com/Pavlo4242/bluethai/pkg/types"
)

// EventKind classifies a [RecognitionEvent].
type EventKind int

const (
	// EventListening reports that audio is being captured.
	EventListening EventKind = iota

	// EventPartial carries the best hypothesis so far.
	EventPartial

	// EventFinal carries the recognised utterance.
	EventFinal

	// EventError reports a failed attempt.
	EventError

	// EventIdle reports an attempt that ended without a result.
	EventIdle
)

// String returns the lower-case event name used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventListening:
		return "listening"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	case EventIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// ErrorCode identifies a recognition failure. The numeric values are stable
// and appear in error messages as "code: N".
type ErrorCode int

const (
	ErrNetworkTimeout          ErrorCode = 1
	ErrNetwork                 ErrorCode = 2
	ErrAudio                   ErrorCode = 3
	ErrServer                  ErrorCode = 4
	ErrClient                  ErrorCode = 5
	ErrSpeechTimeout           ErrorCode = 6
	ErrNoMatch                 ErrorCode = 7
	ErrRecognizerBusy          ErrorCode = 8
	ErrInsufficientPermissions ErrorCode = 9
)

// Benign reports whether the error only means nothing was said. Benign errors
// end the attempt without surfacing a message.
func (c ErrorCode) Benign() bool {
	return c == ErrNoMatch || c == ErrSpeechTimeout
}

// Message returns the user-facing description of the error.
func (c ErrorCode) Message() string {
	switch c {
	case ErrAudio:
		return "Audio recording error"
	case ErrClient:
		return "Client side error"
	case ErrInsufficientPermissions:
		return "Insufficient permissions"
	case ErrNetwork:
		return "Network error"
	case ErrNetworkTimeout:
		return "Network timeout"
	case ErrNoMatch, ErrSpeechTimeout:
		return "No speech input"
	case ErrRecognizerBusy:
		return "Recognizer busy"
	case ErrServer:
		return "Server error"
	default:
		return fmt.Sprintf("Recognition error (code: %d)", int(c))
	}
}

// RecognitionEvent is one step of a recognition attempt.
type RecognitionEvent struct {
	Kind EventKind

	// Text is set for Partial and Final events.
	Text string

	// Code and Message are set for Error events.
	Code    ErrorCode
	Message string
}

// Listening returns a Listening event.
func Listening() RecognitionEvent { return RecognitionEvent{Kind: EventListening} }

// Partial returns a Partial event.
func Partial(text string) RecognitionEvent { return RecognitionEvent{Kind: EventPartial, Text: text} }

// Final returns a Final event.
func Final(text string) RecognitionEvent { return RecognitionEvent{Kind: EventFinal, Text: text} }

// Idle returns an Idle event.
func Idle() RecognitionEvent { return RecognitionEvent{Kind: EventIdle} }

// Failure returns an Error event with the code's standard message.
func Failure(code ErrorCode) RecognitionEvent {
	return RecognitionEvent{Kind: EventError, Code: code, Message: code.Message()}
}

// String formats the event for logs.
func (e RecognitionEvent) String() string {
	switch e.Kind {
	case EventPartial, EventFinal:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	case EventError:
		return fmt.Sprintf("error(%d: %s)", e.Code, e.Message)
	default:
		return e.Kind.String()
	}
}

// Source produces recognition attempts.
type Source interface {
	// Activate starts one recognition attempt in lang. An attempt still
	// running is cancelled first. The returned channel is closed after the
	// attempt's terminal event, or without one if ctx ends.
	Activate(ctx context.Context, lang types.Language) (<-chan RecognitionEvent, error)

	// Deactivate stops capturing. Audio already captured is still recognised
	// and the attempt ends with its result.
	Deactivate()

	// Close cancels any running attempt and releases the source.
	Close() error
}

// Readiness reports what an [Output] can do.
type Readiness struct {
	// OK is false when the synthesiser could not be initialised at all.
	OK bool

	Thai    bool
	English bool
}

// Ready reports whether both languages can be spoken.
func (r Readiness) Ready() bool { return r.OK && r.Thai && r.English }

// Output speaks translated text.
type Output interface {
	// Init prepares the synthesiser in the background and calls ready exactly
	// once with the outcome.
	Init(ctx context.Context, ready func(Readiness))

	// Speak says text in English or Thai. It never blocks and replaces any
	// utterance still playing. Requests for an unavailable language are
	// dropped.
	Speak(text string, isEnglish bool)

	// Close stops playback and releases the synthesiser.
	Close() error
}
