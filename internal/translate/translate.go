// Package translate turns an LLM provider into a streaming translator.
//
// A [Client] holds the current [persona.ClientConfig] and a provider built
// from it. [Client.Translate] starts one completion per source text and
// returns a [Stream] whose updates are cumulative snapshots of the
// translation so far: consumers replace what they display rather than
// appending.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/resilience"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// DefaultTemperature is the sampling temperature used for every translation.
const DefaultTemperature = 0.7

var (
	// ErrNotInitialized is returned by Translate when no API key is
	// configured or the provider could not be built.
	ErrNotInitialized = errors.New("translate: client not initialized")

	// ErrEmptyText is returned by Translate for blank source text. Blank text
	// is never sent to the provider.
	ErrEmptyText = errors.New("translate: empty text")
)

// Translator is the interface the orchestrator drives.
type Translator interface {
	// Configure replaces the active configuration. Equal configurations are a
	// no-op. Streams already running keep the configuration they started with.
	Configure(cfg persona.ClientConfig)

	// Translate starts a translation of text.
	Translate(ctx context.Context, text string) (*Stream, error)
}

// ProviderFactory builds an LLM provider for a configuration with a
// non-empty API key.
type ProviderFactory func(ctx context.Context, cfg persona.ClientConfig) (llm.Provider, error)

// Option configures a [Client].
type Option func(*Client)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTemperature overrides [DefaultTemperature].
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithProviderName sets the provider label used in metrics and logs.
func WithProviderName(name string) Option {
	return func(c *Client) { c.providerName = name }
}

// WithCircuitBreaker overrides the breaker guarding stream starts.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = resilience.NewCircuitBreaker(cfg) }
}

// Client is the production [Translator]. It is safe for concurrent use.
type Client struct {
	factory      ProviderFactory
	metrics      *observe.Metrics
	breaker      *resilience.CircuitBreaker
	temperature  float64
	providerName string

	mu         sync.Mutex
	cfg        persona.ClientConfig
	configured bool
	provider   llm.Provider
	initErr    error
}

var _ Translator = (*Client)(nil)

// NewClient returns an unconfigured Client. Translate fails with
// [ErrNotInitialized] until Configure is called with a non-empty API key.
func NewClient(factory ProviderFactory, opts ...Option) *Client {
	c := &Client{
		factory:      factory,
		temperature:  DefaultTemperature,
		providerName: "llm",
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: c.providerName})
	}
	return c
}

// Configure applies cfg. An empty API key leaves the client uninitialised.
// A change of API key also resets the circuit breaker, since failures under
// the old key say nothing about the new one.
func (c *Client) Configure(cfg persona.ClientConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.configured && cfg == c.cfg {
		return
	}
	keyChanged := !c.configured || cfg.APIKey != c.cfg.APIKey
	c.cfg = cfg
	c.configured = true
	c.provider = nil
	c.initErr = nil

	if keyChanged {
		c.breaker.Reset()
	}
	if cfg.APIKey == "" {
		slog.Warn("translate: no api key configured", "model", cfg.Model)
		return
	}

	p, err := c.factory(context.Background(), cfg)
	if err != nil {
		c.initErr = err
		slog.Error("translate: failed to build provider", "model", cfg.Model, "err", err)
		return
	}
	c.provider = p
	slog.Info("translate: configured", "provider", c.providerName, "model", cfg.Model)
}

// Config returns the active configuration.
func (c *Client) Config() persona.ClientConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Ready reports whether Translate can start a stream.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider != nil
}

// Translate starts streaming a translation of text under the active
// configuration. The returned Stream must be drained or cancelled.
func (c *Client) Translate(ctx context.Context, text string) (*Stream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	c.mu.Lock()
	p, cfg, initErr := c.provider, c.cfg, c.initErr
	c.mu.Unlock()
	if p == nil {
		if initErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotInitialized, initErr)
		}
		return nil, ErrNotInitialized
	}

	ctx, cancel := context.WithCancel(ctx)
	ctx, span := observe.StartSpan(ctx, "translate.stream",
		attribute.String("model", cfg.Model),
		attribute.Int("source.length", len(text)),
	)

	req := llm.CompletionRequest{
		SystemPrompt: cfg.Instruction,
		Messages:     []types.Message{{Role: "user", Content: text}},
		Temperature:  c.temperature,
	}

	start := time.Now()
	var chunks <-chan llm.Chunk
	err := c.breaker.Execute(func() error {
		var err error
		chunks, err = p.StreamCompletion(ctx, req)
		return err
	})
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, c.providerName, "llm", "error")
		c.metrics.RecordProviderError(ctx, c.providerName, "llm")
		c.metrics.RecordTranslation(ctx, observe.StatusError, time.Since(start))
		observe.FailSpan(span, err)
		span.End()
		cancel()
		return nil, fmt.Errorf("translate: stream: %w", err)
	}
	c.metrics.RecordProviderRequest(ctx, c.providerName, "llm", "ok")
	c.metrics.ActiveStreams.Add(ctx, 1)

	s := newStream(cancel)
	go func() {
		defer span.End()
		defer c.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

		err := s.pump(ctx, chunks, func() {
			c.metrics.TranslationFirstChunk.Record(ctx, time.Since(start).Seconds())
		})

		mctx := context.WithoutCancel(ctx)
		switch {
		case err == nil:
			c.metrics.RecordTranslation(mctx, observe.StatusOK, time.Since(start))
		case errors.Is(err, context.Canceled):
			c.metrics.RecordTranslation(mctx, observe.StatusSuperseded, time.Since(start))
		default:
			c.metrics.RecordTranslation(mctx, observe.StatusError, time.Since(start))
			c.metrics.RecordProviderError(mctx, c.providerName, "llm")
			observe.FailSpan(span, err)
			observe.Logger(ctx).Warn("translate: stream failed", "model", cfg.Model, "err", err)
		}
	}()
	return s, nil
}

// Stream is a cancellable handle on one running translation.
type Stream struct {
	updates chan string
	done    chan struct{}
	cancel  context.CancelFunc

	text string
	err  error
}

// NewStream wraps a provider chunk channel in a Stream, folding deltas into
// cumulative snapshots. Cancelling the Stream cancels the context passed to
// the producer, so chunks should be produced under the returned context.
func NewStream(ctx context.Context, produce func(ctx context.Context) <-chan llm.Chunk) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := newStream(cancel)
	chunks := produce(ctx)
	go s.pump(ctx, chunks, func() {})
	return s
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		updates: make(chan string, 8),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
}

// Updates returns the channel of cumulative snapshots. It is closed when the
// stream ends for any reason.
func (s *Stream) Updates() <-chan string { return s.updates }

// Err reports why the stream ended. It blocks until Updates is closed. A nil
// error means the translation completed; a cancelled stream reports
// context.Canceled.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Text returns the final cumulative translation. It blocks until the stream ends.
func (s *Stream) Text() string {
	<-s.done
	return s.text
}

// Cancel stops the stream. It is safe to call more than once and after the
// stream has ended.
func (s *Stream) Cancel() { s.cancel() }

// pump folds provider deltas into cumulative snapshots.
func (s *Stream) pump(ctx context.Context, chunks <-chan llm.Chunk, firstChunk func()) (err error) {
	defer func() {
		s.err = err
		close(s.updates)
		close(s.done)
		s.cancel()
	}()

	var b strings.Builder
	first := true
	for {
		select {
		case <-ctx.Done():
			go drain(chunks)
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.text = b.String()
				return nil
			}
			if chunk.FinishReason == llm.FinishReasonError {
				go drain(chunks)
				return fmt.Errorf("translate: stream: %s", chunk.Text)
			}
			if chunk.Text == "" {
				continue
			}
			if first {
				first = false
				firstChunk()
			}
			b.WriteString(chunk.Text)
			select {
			case s.updates <- b.String():
			case <-ctx.Done():
				go drain(chunks)
				return ctx.Err()
			}
		}
	}
}

func drain(ch <-chan llm.Chunk) {
	for range ch {
	}
}
