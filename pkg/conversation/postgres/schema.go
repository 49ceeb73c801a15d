// Package postgres is the server-side conversation store on PostgreSQL,
// using a pgx connection pool.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	sess, _ := store.CreateSession(ctx)
//	_, _ = store.SaveEntry(ctx, conversation.NewEntry(sess.ID, "hello", "สวัสดี", true, time.Now()))
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlConversation = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
    id          TEXT         PRIMARY KEY,
    start_time  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_sessions_start_time
    ON conversation_sessions (start_time DESC);

CREATE TABLE IF NOT EXISTS conversation_entries (
    id            BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL REFERENCES conversation_sessions (id) ON DELETE CASCADE,
    english_text  TEXT         NOT NULL,
    thai_text     TEXT         NOT NULL,
    timestamp     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    from_english  BOOLEAN      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_entries_session_timestamp
    ON conversation_entries (session_id, timestamp, id);
`

// Migrate creates the conversation tables. It is idempotent and safe to call
// on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlConversation); err != nil {
		return fmt.Errorf("conversation postgres: migrate: %w", err)
	}
	return nil
}
