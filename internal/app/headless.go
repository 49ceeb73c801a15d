package app

import (
	"context"
	"log/slog"
	"time"
)

// restartDelay spaces out automatic listening restarts.
const restartDelay = 500 * time.Millisecond

// ListenContinuously keeps a recognition attempt running until ctx is done.
// It drives the orchestrator when there is no interactive front end: each
// time listening stops, a new attempt starts after restartDelay.
func (a *App) ListenContinuously(ctx context.Context) error {
	states := a.orch.Subscribe(ctx)
	var (
		last     time.Time
		reported bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-states:
			if !ok {
				return nil
			}
			if s.CurrentSessionID == "" {
				continue
			}
			if !reported {
				reported = true
				if rep := a.Readiness(ctx); !rep.OK() {
					slog.Warn("not ready", "checks", rep.Checks)
				}
			}
			if s.Listening {
				continue
			}
			if wait := restartDelay - time.Since(last); wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
			last = time.Now()
			a.orch.StartListening()
		}
	}
}
