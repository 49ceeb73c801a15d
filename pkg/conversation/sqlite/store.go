package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

var _ conversation.Store = (*Store)(nil)

// previewColumn selects the source side of a session's earliest entry.
const previewColumn = `(SELECT CASE WHEN e.from_english = 1 THEN e.english_text ELSE e.thai_text END
    FROM entries e WHERE e.session_id = s.id
    ORDER BY e.timestamp ASC, e.id ASC LIMIT 1) AS preview`

// Store is a [conversation.Store] on a SQLite database.
type Store struct {
	conversation.Notifier

	db  *sql.DB
	sq  sq.StatementBuilderType
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn. Use [MemoryDSN] for a
// throwaway store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, sq: sq.StatementBuilder, now: time.Now}, nil
}

// CreateSession implements [conversation.Store].
func (s *Store) CreateSession(ctx context.Context) (conversation.Session, error) {
	sess := conversation.NewSession(s.now())
	query, args, err := s.sq.Insert("sessions").
		Columns("id", "start_time").
		Values(sess.ID, sess.StartTime.UnixMilli()).
		ToSql()
	if err != nil {
		return conversation.Session{}, fmt.Errorf("conversation sqlite: create session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return conversation.Session{}, fmt.Errorf("conversation sqlite: create session: %w", err)
	}
	sess.StartTime = time.UnixMilli(sess.StartTime.UnixMilli())
	s.Publish(conversation.Change{Kind: conversation.SessionCreated, SessionID: sess.ID})
	return sess, nil
}

// ListSessions implements [conversation.Store].
func (s *Store) ListSessions(ctx context.Context) ([]conversation.Session, error) {
	query, args, err := s.sq.Select("id", "start_time").
		From("sessions").
		OrderBy("start_time DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("conversation sqlite: list sessions: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	out := []conversation.Session{}
	for rows.Next() {
		var (
			sess  conversation.Session
			start int64
		)
		if err := rows.Scan(&sess.ID, &start); err != nil {
			return nil, fmt.Errorf("conversation sqlite: scan session: %w", err)
		}
		sess.StartTime = time.UnixMilli(start)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SessionPreviews implements [conversation.Store].
func (s *Store) SessionPreviews(ctx context.Context) ([]conversation.SessionPreview, error) {
	query, args, err := s.sq.Select("s.id", "s.start_time", previewColumn).
		From("sessions s").
		OrderBy("s.start_time DESC", "s.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("conversation sqlite: session previews: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation sqlite: session previews: %w", err)
	}
	defer rows.Close()

	out := []conversation.SessionPreview{}
	for rows.Next() {
		var (
			p       conversation.SessionPreview
			start   int64
			preview sql.NullString
		)
		if err := rows.Scan(&p.ID, &start, &preview); err != nil {
			return nil, fmt.Errorf("conversation sqlite: scan preview: %w", err)
		}
		p.StartTime = time.UnixMilli(start)
		p.PreviewText = conversation.NoMessages
		if preview.Valid {
			p.PreviewText = preview.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Entries implements [conversation.Store].
func (s *Store) Entries(ctx context.Context, sessionID string) ([]conversation.Entry, error) {
	query, args, err := s.sq.Select("id", "session_id", "english_text", "thai_text", "timestamp", "from_english").
		From("entries").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("timestamp ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("conversation sqlite: entries: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation sqlite: entries: %w", err)
	}
	defer rows.Close()

	out := []conversation.Entry{}
	for rows.Next() {
		var (
			e  conversation.Entry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EnglishText, &e.ThaiText, &ts, &e.FromEnglish); err != nil {
			return nil, fmt.Errorf("conversation sqlite: scan entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveEntry implements [conversation.Store].
func (s *Store) SaveEntry(ctx context.Context, e conversation.Entry) (conversation.Entry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := sessionExists(ctx, tx, s.sq, e.SessionID); err != nil {
			return err
		}
		query, args, err := s.sq.Insert("entries").
			Columns("session_id", "english_text", "thai_text", "timestamp", "from_english").
			Values(e.SessionID, e.EnglishText, e.ThaiText, e.Timestamp.UnixMilli(), e.FromEnglish).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		e.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return conversation.Entry{}, fmt.Errorf("conversation sqlite: save entry: %w", err)
	}
	e.Timestamp = time.UnixMilli(e.Timestamp.UnixMilli())
	s.Publish(conversation.Change{Kind: conversation.EntrySaved, SessionID: e.SessionID})
	return e, nil
}

// DeleteSession implements [conversation.Store]. Entries go with the session
// through the ON DELETE CASCADE foreign key.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	query, args, err := s.sq.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("conversation sqlite: delete session: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("conversation sqlite: delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("conversation sqlite: delete session %s: %w", id, conversation.ErrSessionNotFound)
	}
	s.Publish(conversation.Change{Kind: conversation.SessionDeleted, SessionID: id})
	return nil
}

// Ping implements [conversation.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes all subscriptions and the database.
func (s *Store) Close() error {
	s.CloseSubscribers()
	return s.db.Close()
}

func sessionExists(ctx context.Context, tx *sql.Tx, b sq.StatementBuilderType, id string) error {
	query, args, err := b.Select("1").From("sessions").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return err
	}
	var one int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, conversation.ErrSessionNotFound)
	}
	return err
}
