// Package mock provides an in-memory conversation.Store for tests.
//
// Store behaves like the real stores (ordering, cascading deletes, change
// feed) and additionally records calls and lets tests inject failures.
//
//	store := mock.New()
//	store.SaveEntryErr = errors.New("disk full")
package mock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// Store is an in-memory [conversation.Store].
type Store struct {
	conversation.Notifier

	mu sync.Mutex

	// SaveEntryErr, if non-nil, is returned by SaveEntry.
	SaveEntryErr error

	// CreateSessionErr, if non-nil, is returned by CreateSession.
	CreateSessionErr error

	// Now supplies session start times. Defaults to time.Now.
	Now func() time.Time

	sessions []conversation.Session
	entries  []conversation.Entry
	nextID   int64
	calls    map[string]int
	closed   bool
}

var _ conversation.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{calls: map[string]int{}}
}

// Seed inserts sessions and entries directly, without publishing changes.
// Entries without an ID are assigned one.
func (s *Store) Seed(sessions []conversation.Session, entries []conversation.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessions...)
	for _, e := range entries {
		s.nextID++
		if e.ID == 0 {
			e.ID = s.nextID
		}
		s.entries = append(s.entries, e)
	}
}

// CallCount returns how many times method was called.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) record(method string) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[method]++
}

func (s *Store) CreateSession(context.Context) (conversation.Session, error) {
	s.mu.Lock()
	s.record("CreateSession")
	if s.CreateSessionErr != nil {
		err := s.CreateSessionErr
		s.mu.Unlock()
		return conversation.Session{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	sess := conversation.NewSession(now())
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()

	s.Publish(conversation.Change{Kind: conversation.SessionCreated, SessionID: sess.ID})
	return sess, nil
}

func (s *Store) ListSessions(context.Context) ([]conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListSessions")
	return s.sortedSessions(), nil
}

func (s *Store) SessionPreviews(context.Context) ([]conversation.SessionPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("SessionPreviews")

	out := []conversation.SessionPreview{}
	for _, sess := range s.sortedSessions() {
		p := conversation.SessionPreview{Session: sess, PreviewText: conversation.NoMessages}
		if es := s.entriesOf(sess.ID); len(es) > 0 {
			p.PreviewText = es[0].SourceText()
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) Entries(_ context.Context, sessionID string) ([]conversation.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Entries")
	return s.entriesOf(sessionID), nil
}

func (s *Store) SaveEntry(_ context.Context, e conversation.Entry) (conversation.Entry, error) {
	s.mu.Lock()
	s.record("SaveEntry")
	if s.SaveEntryErr != nil {
		err := s.SaveEntryErr
		s.mu.Unlock()
		return conversation.Entry{}, err
	}
	if !slices.ContainsFunc(s.sessions, func(x conversation.Session) bool { return x.ID == e.SessionID }) {
		s.mu.Unlock()
		return conversation.Entry{}, fmt.Errorf("mock: save entry: %w", conversation.ErrSessionNotFound)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.nextID++
	e.ID = s.nextID
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	s.Publish(conversation.Change{Kind: conversation.EntrySaved, SessionID: e.SessionID})
	return e, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	s.record("DeleteSession")
	before := len(s.sessions)
	s.sessions = slices.DeleteFunc(s.sessions, func(x conversation.Session) bool { return x.ID == id })
	if len(s.sessions) == before {
		s.mu.Unlock()
		return fmt.Errorf("mock: delete session: %w", conversation.ErrSessionNotFound)
	}
	s.entries = slices.DeleteFunc(s.entries, func(e conversation.Entry) bool { return e.SessionID == id })
	s.mu.Unlock()

	s.Publish(conversation.Change{Kind: conversation.SessionDeleted, SessionID: id})
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: store closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.CloseSubscribers()
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// sortedSessions must be called with s.mu held.
func (s *Store) sortedSessions() []conversation.Session {
	out := slices.Clone(s.sessions)
	slices.SortStableFunc(out, func(a, b conversation.Session) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if out == nil {
		out = []conversation.Session{}
	}
	return out
}

// entriesOf must be called with s.mu held.
func (s *Store) entriesOf(sessionID string) []conversation.Entry {
	out := []conversation.Entry{}
	for _, e := range s.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b conversation.Entry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
