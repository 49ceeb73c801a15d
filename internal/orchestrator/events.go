package orchestrator

import (
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/speech"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// event is anything the actor consumes.
type event any

// action is a user request applied on the actor.
type action func(o *Orchestrator)

type bootstrap struct{}

type sessionsListed struct {
	sessions []conversation.Session
	err      error
}

type sessionCreated struct {
	session conversation.Session
	err     error
}

type sessionDeleted struct {
	id  string
	err error
}

// recognized carries one event of recognition attempt n.
type recognized struct {
	attempt uint64
	ev      speech.RecognitionEvent
}

// attemptEnded reports that attempt n's event stream closed.
type attemptEnded struct {
	attempt uint64
}

type configResolved struct {
	seq uint64
	cfg persona.ClientConfig
}

// chunk is a cumulative translation snapshot of stream gen.
type chunk struct {
	gen  uint64
	text string
}

type streamEnded struct {
	gen  uint64
	text string
	err  error
}

type entrySaved struct {
	entry conversation.Entry
	err   error
}
