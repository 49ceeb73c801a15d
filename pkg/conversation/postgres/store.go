package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

var _ conversation.Store = (*Store)(nil)

// Store is a [conversation.Store] backed by PostgreSQL. All methods are safe
// for concurrent use.
type Store struct {
	conversation.Notifier

	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("conversation postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// CreateSession implements [conversation.Store].
func (s *Store) CreateSession(ctx context.Context) (conversation.Session, error) {
	sess := conversation.NewSession(time.Now().Truncate(time.Microsecond))
	const q = `INSERT INTO conversation_sessions (id, start_time) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, sess.ID, sess.StartTime); err != nil {
		return conversation.Session{}, fmt.Errorf("conversation postgres: create session: %w", err)
	}
	s.Publish(conversation.Change{Kind: conversation.SessionCreated, SessionID: sess.ID})
	return sess, nil
}

// ListSessions implements [conversation.Store].
func (s *Store) ListSessions(ctx context.Context) ([]conversation.Session, error) {
	const q = `
		SELECT id, start_time
		FROM   conversation_sessions
		ORDER  BY start_time DESC, id DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: list sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (conversation.Session, error) {
		var sess conversation.Session
		err := row.Scan(&sess.ID, &sess.StartTime)
		return sess, err
	})
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: scan sessions: %w", err)
	}
	if sessions == nil {
		sessions = []conversation.Session{}
	}
	return sessions, nil
}

// SessionPreviews implements [conversation.Store].
func (s *Store) SessionPreviews(ctx context.Context) ([]conversation.SessionPreview, error) {
	const q = `
		SELECT s.id, s.start_time, first.preview
		FROM   conversation_sessions s
		LEFT   JOIN LATERAL (
		       SELECT CASE WHEN e.from_english THEN e.english_text ELSE e.thai_text END AS preview
		       FROM   conversation_entries e
		       WHERE  e.session_id = s.id
		       ORDER  BY e.timestamp, e.id
		       LIMIT  1
		) first ON true
		ORDER  BY s.start_time DESC, s.id DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: session previews: %w", err)
	}
	previews, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (conversation.SessionPreview, error) {
		var (
			p       conversation.SessionPreview
			preview *string
		)
		if err := row.Scan(&p.ID, &p.StartTime, &preview); err != nil {
			return p, err
		}
		p.PreviewText = conversation.NoMessages
		if preview != nil {
			p.PreviewText = *preview
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: scan previews: %w", err)
	}
	if previews == nil {
		previews = []conversation.SessionPreview{}
	}
	return previews, nil
}

// Entries implements [conversation.Store].
func (s *Store) Entries(ctx context.Context, sessionID string) ([]conversation.Entry, error) {
	const q = `
		SELECT id, session_id, english_text, thai_text, timestamp, from_english
		FROM   conversation_entries
		WHERE  session_id = $1
		ORDER  BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (conversation.Entry, error) {
		var e conversation.Entry
		err := row.Scan(&e.ID, &e.SessionID, &e.EnglishText, &e.ThaiText, &e.Timestamp, &e.FromEnglish)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("conversation postgres: scan entries: %w", err)
	}
	if entries == nil {
		entries = []conversation.Entry{}
	}
	return entries, nil
}

// SaveEntry implements [conversation.Store]. The insert selects from the
// sessions table so that a missing session inserts nothing.
func (s *Store) SaveEntry(ctx context.Context, e conversation.Entry) (conversation.Entry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.Truncate(time.Microsecond)

	const q = `
		INSERT INTO conversation_entries
		    (session_id, english_text, thai_text, timestamp, from_english)
		SELECT id, $2, $3, $4, $5
		FROM   conversation_sessions
		WHERE  id = $1
		RETURNING id`

	err := s.pool.QueryRow(ctx, q, e.SessionID, e.EnglishText, e.ThaiText, e.Timestamp, e.FromEnglish).Scan(&e.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.Entry{}, fmt.Errorf("conversation postgres: save entry: session %s: %w", e.SessionID, conversation.ErrSessionNotFound)
	}
	if err != nil {
		return conversation.Entry{}, fmt.Errorf("conversation postgres: save entry: %w", err)
	}
	s.Publish(conversation.Change{Kind: conversation.EntrySaved, SessionID: e.SessionID})
	return e, nil
}

// DeleteSession implements [conversation.Store].
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversation_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("conversation postgres: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation postgres: delete session %s: %w", id, conversation.ErrSessionNotFound)
	}
	s.Publish(conversation.Change{Kind: conversation.SessionDeleted, SessionID: id})
	return nil
}

// Ping implements [conversation.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close ends all subscriptions and releases the pool.
func (s *Store) Close() error {
	s.CloseSubscribers()
	s.pool.Close()
	return nil
}
