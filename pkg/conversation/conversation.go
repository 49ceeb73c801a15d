// Package conversation defines the persisted conversation history: sessions,
// the translation entries inside them, and the change feed that keeps
// reactive views current.
//
// Sessions are listed newest first. Entries within a session are listed
// oldest first, ties broken by ID. Deleting a session deletes its entries.
//
// Every [Store] implementation must be safe for concurrent use.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
)

// NoMessages is the preview text of a session without entries.
const NoMessages = "No messages"

// ErrSessionNotFound is returned when an operation names a session that does
// not exist.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Session is one conversation. Sessions are immutable once created.
type Session struct {
	// ID is an xid: globally unique and ordered by creation time.
	ID        string
	StartTime time.Time
}

// NewSession returns a Session with a fresh ID started at now.
func NewSession(now time.Time) Session {
	return Session{ID: xid.NewWithTime(now).String(), StartTime: now}
}

// Entry is one completed translation.
type Entry struct {
	// ID is assigned by the store on save.
	ID          int64
	SessionID   string
	EnglishText string
	ThaiText    string
	Timestamp   time.Time

	// FromEnglish reports whether the speaker spoke English. It decides which
	// side is the source.
	FromEnglish bool
}

// SourceText returns the text the speaker said.
func (e Entry) SourceText() string {
	if e.FromEnglish {
		return e.EnglishText
	}
	return e.ThaiText
}

// TranslatedText returns the model's translation.
func (e Entry) TranslatedText() string {
	if e.FromEnglish {
		return e.ThaiText
	}
	return e.EnglishText
}

// NewEntry builds an unsaved Entry from a source text and its translation.
func NewEntry(sessionID, source, translated string, fromEnglish bool, at time.Time) Entry {
	e := Entry{SessionID: sessionID, Timestamp: at, FromEnglish: fromEnglish}
	if fromEnglish {
		e.EnglishText, e.ThaiText = source, translated
	} else {
		e.EnglishText, e.ThaiText = translated, source
	}
	return e
}

// SessionPreview pairs a session with the source text of its earliest entry,
// or [NoMessages].
type SessionPreview struct {
	Session
	PreviewText string
}

// Store persists sessions and entries.
type Store interface {
	// CreateSession starts and persists a new session.
	CreateSession(ctx context.Context) (Session, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]Session, error)

	// SessionPreviews returns every session with its preview, newest first.
	SessionPreviews(ctx context.Context) ([]SessionPreview, error)

	// Entries returns the entries of sessionID, oldest first. An unknown
	// session yields an empty list.
	Entries(ctx context.Context, sessionID string) ([]Entry, error)

	// SaveEntry persists e and returns it with its assigned ID. It returns
	// [ErrSessionNotFound] if e.SessionID does not exist.
	SaveEntry(ctx context.Context, e Entry) (Entry, error)

	// DeleteSession removes a session and its entries. It returns
	// [ErrSessionNotFound] if id does not exist.
	DeleteSession(ctx context.Context, id string) error

	// Subscribe returns a feed of changes and a function that ends the
	// subscription.
	Subscribe() (<-chan Change, func())

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
