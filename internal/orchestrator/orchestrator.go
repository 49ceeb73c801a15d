// Package orchestrator drives one conversation: it turns recognition events
// into translations, shows them while they stream, persists the finished ones
// and speaks them aloud.
//
// All state is owned by a single actor goroutine that drains one event
// channel. Recognition attempts, translation streams, storage calls and
// configuration changes run in their own goroutines and report back as
// events, so no collaborator ever blocks the actor. Consumers read immutable
// [State] snapshots composed from the actor's fields, the current session's
// entries, the session list and the synthesiser's readiness.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/signal"
	"github.com/Pavlo4242/bluethai/internal/speech"
	"github.com/Pavlo4242/bluethai/internal/translate"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("orchestrator: closed")

// eventBuffer bounds the actor's inbox.
const eventBuffer = 64

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Source     speech.Source
	Output     speech.Output
	Translator translate.Translator
	Store      conversation.Store

	// Keys is the named API key set. It can be replaced with SetAPIKeys.
	Keys persona.Keys

	// Preferences are the initial settings. The zero value means
	// [DefaultPreferences].
	Preferences *Preferences

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Orchestrator is the conversation state machine. All exported methods are
// safe for concurrent use; actions are applied asynchronously in call order.
type Orchestrator struct {
	source     speech.Source
	output     speech.Output
	translator translate.Translator
	store      conversation.Store
	metrics    *observe.Metrics

	events chan event
	quit   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// Published cells. Only the actor writes c; the views and tts are fed by
	// their watchers.
	c        *signal.Var[core]
	entries  *signal.Var[sessionEntries]
	previews *signal.Var[[]conversation.SessionPreview]
	tts      *signal.Var[speech.Readiness]
	state    *signal.Derived[State]

	// Actor-owned. Never touched outside run.
	cur  core
	keys persona.Keys

	attemptSeq    uint64
	attemptActive bool
	stopAttempt   context.CancelFunc

	gen    uint64
	turn   turn
	stream *translate.Stream

	cfgSeq      uint64
	cfgApplied  uint64
	stopEntries context.CancelFunc
}

// turn is the translation currently streaming. Its session is captured when
// the translation starts.
type turn struct {
	gen         uint64
	sessionID   string
	source      string
	fromEnglish bool
	translated  string
}

// New returns an Orchestrator. Call Start to run it.
func New(cfg Config) *Orchestrator {
	prefs := DefaultPreferences()
	if cfg.Preferences != nil {
		prefs = *cfg.Preferences
		prefs.FontSize = clampFontSize(prefs.FontSize)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		source:     cfg.Source,
		output:     cfg.Output,
		translator: cfg.Translator,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		events:     make(chan event, eventBuffer),
		quit:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		keys:       cfg.Keys.Clone(),
		cfgSeq:     1,
	}
	o.cur = core{Preferences: prefs, keyNames: o.keys.Names()}

	o.c = signal.New(o.cur)
	o.entries = signal.New(sessionEntries{})
	o.previews = signal.New[[]conversation.SessionPreview](nil)
	o.tts = signal.New(speech.Readiness{})
	o.state = signal.Derive(o.quit, func() State {
		return compose(o.c.Value(), o.entries.Value(), o.previews.Value(), o.tts.Value())
	}, o.c, o.entries, o.previews, o.tts)
	return o
}

// Start runs the actor, loads the session history and initialises the
// synthesiser. ctx bounds the orchestrator's lifetime like Close does.
func (o *Orchestrator) Start(ctx context.Context) error {
	select {
	case <-o.quit:
		return ErrClosed
	default:
	}
	o.startOnce.Do(func() {
		o.wg.Add(1)
		go o.run()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			select {
			case <-ctx.Done():
				o.cancel()
			case <-o.ctx.Done():
			}
		}()

		o.watchPreviews()
		o.output.Init(o.ctx, func(r speech.Readiness) { o.tts.Set(r) })
		o.post(bootstrap{})
	})
	return nil
}

// Close stops every activity, waits for the goroutines to finish and
// releases the speech source and output. It is safe to call more than once.
func (o *Orchestrator) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.quit)
		o.cancel()
		o.wg.Wait()
		err = errors.Join(o.source.Close(), o.output.Close())
	})
	return err
}

// State returns the latest snapshot.
func (o *Orchestrator) State() State { return o.state.Value() }

// Subscribe returns a channel that holds the latest snapshot: the current
// one immediately, then one after every change. Intermediate snapshots may be
// skipped. The channel is closed when ctx ends.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan State {
	return o.state.Watch(ctx.Done())
}

// Ready reports whether a session is loaded and translations can be stored.
func (o *Orchestrator) Ready() bool { return o.State().CurrentSessionID != "" }

// post delivers ev to the actor unless the orchestrator is shutting down,
// either through Close or the end of the Start context.
func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.quit:
	case <-o.ctx.Done():
	}
}

// goAsync runs fn off the actor and posts its result.
func (o *Orchestrator) goAsync(fn func(ctx context.Context) event) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if ev := fn(o.ctx); ev != nil {
			o.post(ev)
		}
	}()
}

func (o *Orchestrator) run() {
	defer o.wg.Done()
	defer o.shutdown()
	for {
		select {
		case <-o.quit:
			return
		case <-o.ctx.Done():
			return
		case ev := <-o.events:
			o.handle(ev)
			o.publish()
		}
	}
}

// publish makes the actor's fields visible. Side effects of the event have
// already been started when subscribers see the new state.
func (o *Orchestrator) publish() {
	o.c.Set(o.cur)
	o.state.Refresh()
}

func (o *Orchestrator) shutdown() {
	if o.stopAttempt != nil {
		o.stopAttempt()
	}
	if o.stream != nil {
		o.stream.Cancel()
	}
	if o.stopEntries != nil {
		o.stopEntries()
	}
}

func (o *Orchestrator) handle(ev event) {
	switch e := ev.(type) {
	case action:
		e(o)
	case bootstrap:
		o.reconfigure()
		o.listSessions()
	case sessionsListed:
		o.onSessionsListed(e)
	case sessionCreated:
		o.onSessionCreated(e)
	case sessionDeleted:
		o.onSessionDeleted(e)
	case recognized:
		o.onRecognized(e)
	case attemptEnded:
		o.onAttemptEnded(e)
	case configResolved:
		o.onConfigResolved(e)
	case chunk:
		o.onChunk(e)
	case streamEnded:
		o.onStreamEnded(e)
	case entrySaved:
		o.onEntrySaved(e)
	default:
		slog.Warn("orchestrator: unknown event", "event", ev)
	}
}

func (o *Orchestrator) setError(msg string) {
	o.cur.err = msg
}
