// Package stt defines the Provider interface for streaming Speech-to-Text
// backends.
//
// A provider opens a SessionHandle per recognition attempt. The session
// accepts raw 16-bit little-endian PCM frames and emits low-latency partials
// and authoritative finals. Finals with SpeechFinal set close the speaker's
// turn.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/Pavlo4242/bluethai/pkg/types"
)

// ErrSessionClosed is returned by SendAudio after Finish or Close.
var ErrSessionClosed = errors.New("stt: session closed")

// StreamConfig describes the audio format and language of a new session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Default 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 tag to recognise ("en-US", "th-TH").
	Language string
}

// SessionHandle is an open streaming recognition session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of PCM audio. It returns ErrSessionClosed
	// once Finish or Close has been called.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals emits authoritative transcripts. Closed when the session ends.
	Finals() <-chan types.Transcript

	// Finish signals that no more audio will be sent. The provider flushes
	// pending results to Finals and then ends the session.
	Finish() error

	// Err returns the error that ended the session, or nil for a normal end.
	// Valid after Finals is closed.
	Err() error

	// Close terminates the session immediately. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming session. The caller owns the handle
	// and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
