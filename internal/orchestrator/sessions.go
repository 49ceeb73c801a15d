package orchestrator

import (
	"context"
	"log/slog"

	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// listSessions loads the newest session, creating one when there are none.
func (o *Orchestrator) listSessions() {
	o.goAsync(func(ctx context.Context) event {
		sessions, err := o.store.ListSessions(ctx)
		return sessionsListed{sessions: sessions, err: err}
	})
}

func (o *Orchestrator) onSessionsListed(e sessionsListed) {
	if e.err != nil {
		slog.Error("orchestrator: list sessions", "err", e.err)
		o.setError("Failed to load sessions: " + e.err.Error())
		return
	}
	if len(e.sessions) == 0 {
		o.createSession()
		return
	}
	o.loadSession(e.sessions[0].ID)
}

func (o *Orchestrator) createSession() {
	o.goAsync(func(ctx context.Context) event {
		s, err := o.store.CreateSession(ctx)
		return sessionCreated{session: s, err: err}
	})
}

func (o *Orchestrator) onSessionCreated(e sessionCreated) {
	if e.err != nil {
		slog.Error("orchestrator: create session", "err", e.err)
		o.setError("Failed to create session: " + e.err.Error())
		return
	}
	slog.Info("orchestrator: session created", "session_id", e.session.ID)
	o.loadSession(e.session.ID)
}

// loadSession makes id current and re-subscribes the entries view. A
// translation in flight keeps the session it started in.
func (o *Orchestrator) loadSession(id string) {
	if id == o.cur.sessionID {
		return
	}
	if o.stopEntries != nil {
		o.stopEntries()
	}
	o.cur.sessionID = id

	ctx, cancel := context.WithCancel(o.ctx)
	o.stopEntries = cancel
	updates := conversation.WatchEntries(ctx, o.store, id)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for entries := range updates {
			if ctx.Err() != nil {
				return
			}
			o.entries.Set(sessionEntries{sessionID: id, entries: entries})
		}
	}()
	slog.Debug("orchestrator: session loaded", "session_id", id)
}

func (o *Orchestrator) deleteSession(id string) {
	o.goAsync(func(ctx context.Context) event {
		return sessionDeleted{id: id, err: o.store.DeleteSession(ctx, id)}
	})
}

// onSessionDeleted discards a translation still streaming into the deleted
// session and replaces a deleted current session with the newest remaining
// one, or a new one.
func (o *Orchestrator) onSessionDeleted(e sessionDeleted) {
	if e.err != nil {
		slog.Error("orchestrator: delete session", "session_id", e.id, "err", e.err)
		o.setError("Failed to delete session: " + e.err.Error())
		return
	}
	if o.cur.streaming != nil && o.turn.sessionID == e.id {
		o.dropTurn()
	}
	if e.id != o.cur.sessionID {
		return
	}
	if o.stopEntries != nil {
		o.stopEntries()
		o.stopEntries = nil
	}
	o.cur.sessionID = ""
	o.listSessions()
}

// watchPreviews feeds the session list cell for the orchestrator's lifetime.
func (o *Orchestrator) watchPreviews() {
	updates := conversation.WatchPreviews(o.ctx, o.store)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for previews := range updates {
			o.previews.Set(previews)
		}
	}()
}
