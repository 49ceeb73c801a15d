package conversation

import (
	"context"
	"log/slog"
)

// WatchSessions emits the session list now and after every session change.
// The channel holds only the latest list and is closed when ctx ends or the
// store closes.
func WatchSessions(ctx context.Context, s Store) <-chan []Session {
	return watch(ctx, s, func(c Change) bool { return c.Kind != EntrySaved }, s.ListSessions)
}

// WatchPreviews emits the session previews now and after every change.
// Entry saves are included because a session's first entry sets its preview.
func WatchPreviews(ctx context.Context, s Store) <-chan []SessionPreview {
	return watch(ctx, s, func(Change) bool { return true }, s.SessionPreviews)
}

// WatchEntries emits sessionID's entries now and after every change to them.
func WatchEntries(ctx context.Context, s Store, sessionID string) <-chan []Entry {
	return watch(ctx, s,
		func(c Change) bool { return c.Affects(sessionID) },
		func(ctx context.Context) ([]Entry, error) { return s.Entries(ctx, sessionID) },
	)
}

func watch[T any](ctx context.Context, s Store, relevant func(Change) bool, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	changes, unsubscribe := s.Subscribe()

	go func() {
		defer close(out)
		defer unsubscribe()

		emit := func() {
			v, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("conversation: watch query failed", "err", err)
				}
				return
			}
			// Replace any value the consumer has not picked up yet.
			select {
			case <-out:
			default:
			}
			out <- v
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-changes:
				if !ok {
					return
				}
				if relevant(c) {
					emit()
				}
			}
		}
	}()
	return out
}
