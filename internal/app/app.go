// Package app wires the bluethai subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// store, translator, speech adapters and orchestrator; Run starts the
// orchestrator and the admin listener; Shutdown tears everything down in
// order. ApplyConfig turns live config edits into orchestrator settings.
//
// For testing, inject doubles via functional options (WithStore,
// WithSource, WithOutput, WithTranslator). When an option is not provided,
// New creates real implementations from the config and the registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Pavlo4242/bluethai/internal/config"
	"github.com/Pavlo4242/bluethai/internal/health"
	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/internal/orchestrator"
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/resilience"
	"github.com/Pavlo4242/bluethai/internal/speech"
	"github.com/Pavlo4242/bluethai/internal/translate"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
)

// adminShutdownTimeout bounds the admin listener's graceful stop.
const adminShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	reg *config.Registry

	store      conversation.Store
	translator translate.Translator
	text       *speech.TextSource
	source     speech.Source
	output     speech.Output
	orch       *orchestrator.Orchestrator
	metrics    *observe.Metrics
	metricsH   http.Handler
	logLevel   *slog.LevelVar

	health   *health.Handler
	admin    *http.Server
	adminLn  net.Listener
	mu       sync.Mutex
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a conversation store instead of opening one from config.
func WithStore(s conversation.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSource injects the speech source wrapped by the typed-input source.
func WithSource(s speech.Source) Option {
	return func(a *App) { a.source = s }
}

// WithOutput injects the speech output.
func WithOutput(o speech.Output) Option {
	return func(a *App) { a.output = o }
}

// WithTranslator injects the translation client.
func WithTranslator(t translate.Translator) Option {
	return func(a *App) { a.translator = t }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on the admin listener's /metrics route.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithLogLevel lets ApplyConfig change the log level of the running process.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Providers are
// created through reg from cfg; use Option functions to inject test doubles.
// New does not start anything; call Run.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Conversation store ────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Translator ────────────────────────────────────────────────────
	if a.translator == nil {
		a.translator = translate.NewClient(a.llmFactory(),
			translate.WithMetrics(a.metrics),
			translate.WithProviderName(cfg.Providers.LLM.Name),
		)
	}

	// ── 3. Speech in and out ─────────────────────────────────────────────
	if err := a.initSpeech(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init speech: %w", err)
	}

	// ── 4. Orchestrator ──────────────────────────────────────────────────
	prefs := Preferences(cfg)
	a.orch = orchestrator.New(orchestrator.Config{
		Source:      a.text,
		Output:      a.output,
		Translator:  a.translator,
		Store:       a.store,
		Keys:        cfg.Keys(),
		Preferences: &prefs,
		Metrics:     a.metrics,
	})

	// ── 5. Admin listener ────────────────────────────────────────────────
	a.initHealth()
	if cfg.Server.ListenAddr != "" {
		a.initAdmin()
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	s, err := a.reg.CreateStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, s.Close)
	slog.Info("conversation store opened", "driver", a.cfg.Store.Driver)
	return nil
}

// llmFactory builds the provider for each translator configuration: the
// primary backend with the selected key and model, behind a failover group
// when a fallback backend is configured.
func (a *App) llmFactory() translate.ProviderFactory {
	primary := a.cfg.Providers.LLM
	fallback := a.cfg.Providers.LLMFallback
	return func(ctx context.Context, cc persona.ClientConfig) (llm.Provider, error) {
		entry := primary
		entry.APIKey = cc.APIKey
		entry.Model = cc.Model
		p, err := a.reg.CreateLLM(ctx, entry)
		if err != nil {
			return nil, err
		}
		if fallback.Name == "" {
			return p, nil
		}
		fb, err := a.reg.CreateLLM(ctx, fallback)
		if err != nil {
			slog.Warn("fallback llm unavailable", "name", fallback.Name, "err", err)
			return p, nil
		}
		group := resilience.NewLLMFallback(p, primary.Name, resilience.FallbackConfig{})
		group.AddFallback(fallback.Name, fb)
		slog.Debug("translator failover enabled", "order", group.Names(), "model", cc.Model)
		return group.Async(), nil
	}
}

func (a *App) initSpeech() error {
	if a.source == nil {
		a.source = a.newSTTSource()
	}
	a.text = speech.NewTextSource(a.source)

	if a.output == nil {
		a.output = a.newTTSOutput()
	}
	return nil
}

// newSTTSource returns nil when recognition is not configured; the typed
// input source then waits for text instead.
func (a *App) newSTTSource() speech.Source {
	entry := a.cfg.Providers.STT
	if entry.APIKey == "" {
		slog.Info("speech recognition disabled, no stt api key")
		return nil
	}
	p, err := a.reg.CreateSTT(entry)
	if err != nil {
		slog.Warn("speech recognition unavailable", "name", entry.Name, "err", err)
		return nil
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name)
	return speech.NewSTTSource(p, a.cfg.Audio.CaptureInput(), speech.WithSourceMetrics(a.metrics))
}

func (a *App) newTTSOutput() speech.Output {
	entry := a.cfg.Providers.TTS
	if entry.APIKey == "" {
		slog.Info("speech output disabled, no tts api key")
		return speech.Silent{}
	}
	p, err := a.reg.CreateTTS(entry)
	if err != nil {
		slog.Warn("speech output unavailable", "name", entry.Name, "err", err)
		return speech.Silent{}
	}
	slog.Info("provider created", "kind", "tts", "name", entry.Name)
	voices := speech.Voices{English: a.cfg.Voices.English, Thai: a.cfg.Voices.Thai}
	return speech.NewTTSOutput(p, a.cfg.Audio.PlayerOutput(), voices,
		speech.WithOutputMetrics(a.metrics),
		speech.WithProviderName(entry.Name),
	)
}

func (a *App) initHealth() {
	checks := []health.Checker{
		health.Store(a.store),
		health.Condition("session", a.orch.Ready, "no conversation session loaded"),
	}
	if c, ok := a.translator.(interface{ Ready() bool }); ok {
		checks = append(checks, health.Condition("translator", c.Ready, "translator not configured"))
	}
	a.health = health.New(checks...)
}

func (a *App) initAdmin() {
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.metricsH != nil {
		mux.Handle("GET /metrics", a.metricsH)
	}
	a.admin = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Orchestrator returns the conversation state machine.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Text returns the typed-input source the UI submits text through.
func (a *App) Text() *speech.TextSource { return a.text }

// Readiness runs the readiness checks served on /readyz.
func (a *App) Readiness(ctx context.Context) health.Report {
	return a.health.Evaluate(ctx)
}

// AdminAddr returns the admin listener's bound address once Run has started
// it, or "" when it is disabled or not yet listening.
func (a *App) AdminAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adminLn == nil {
		return ""
	}
	return a.adminLn.Addr().String()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the orchestrator and the admin listener and blocks until ctx is
// cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.orch.Start(ctx); err != nil {
		return fmt.Errorf("app: start orchestrator: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.admin != nil {
		ln, err := net.Listen("tcp", a.admin.Addr)
		if err != nil {
			return fmt.Errorf("app: admin listen %q: %w", a.admin.Addr, err)
		}
		a.mu.Lock()
		a.adminLn = ln
		a.mu.Unlock()
		slog.Info("admin listener started", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := a.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adminShutdownTimeout)
			defer cancel()
			return a.admin.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	slog.Info("app running")
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the orchestrator, then runs the closers in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.orch.Close(); err != nil {
			slog.Warn("orchestrator close error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}
