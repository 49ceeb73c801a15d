// Package mock provides a scriptable translate.Translator for orchestrator tests.
//
// Every Translate call opens a [Call] whose chunks the test feeds by hand, so
// tests control exactly when partial translations, completion and failures
// reach the orchestrator.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/translate"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
)

// Call is one Translate invocation.
type Call struct {
	Text   string
	Config persona.ClientConfig

	ctx    context.Context
	chunks chan llm.Chunk
	once   sync.Once
}

// Send delivers a delta. It returns false if the stream has been cancelled.
func (c *Call) Send(delta string) bool {
	select {
	case c.chunks <- llm.Chunk{Text: delta}:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// Finish ends the stream successfully.
func (c *Call) Finish() {
	c.once.Do(func() { close(c.chunks) })
}

// Fail ends the stream with a mid-stream error.
func (c *Call) Fail(msg string) {
	select {
	case c.chunks <- llm.Chunk{FinishReason: llm.FinishReasonError, Text: msg}:
	case <-c.ctx.Done():
	}
	c.Finish()
}

// Cancelled reports whether the orchestrator cancelled this stream.
func (c *Call) Cancelled() bool {
	return c.ctx.Err() != nil
}

// Done is closed when the stream's context is cancelled.
func (c *Call) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Translator is a mock implementation of translate.Translator.
type Translator struct {
	mu sync.Mutex

	// TranslateErr, if non-nil, is returned from Translate.
	TranslateErr error

	cfg        persona.ClientConfig
	configures []persona.ClientConfig
	calls      []*Call
	started    chan *Call
}

// New returns a Translator whose Started channel receives every call.
func New() *Translator {
	return &Translator{started: make(chan *Call, 64)}
}

// Configure records cfg. Identical consecutive configs are recorded once.
func (t *Translator) Configure(cfg persona.ClientConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.configures) > 0 && t.cfg == cfg {
		return
	}
	t.cfg = cfg
	t.configures = append(t.configures, cfg)
}

// Translate opens a new scripted Call.
func (t *Translator) Translate(ctx context.Context, text string) (*translate.Stream, error) {
	t.mu.Lock()
	if strings.TrimSpace(text) == "" {
		t.mu.Unlock()
		return nil, translate.ErrEmptyText
	}
	if t.TranslateErr != nil {
		err := t.TranslateErr
		t.mu.Unlock()
		return nil, err
	}
	if t.cfg.APIKey == "" {
		t.mu.Unlock()
		return nil, translate.ErrNotInitialized
	}
	call := &Call{Text: text, Config: t.cfg, chunks: make(chan llm.Chunk)}
	t.calls = append(t.calls, call)
	t.mu.Unlock()

	s := translate.NewStream(ctx, func(ctx context.Context) <-chan llm.Chunk {
		call.ctx = ctx
		return call.chunks
	})
	t.started <- call
	return s, nil
}

// Started returns a channel that receives each Call as it is opened.
func (t *Translator) Started() <-chan *Call { return t.started }

// Calls returns all Translate calls so far.
func (t *Translator) Calls() []*Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Call(nil), t.calls...)
}

// Configures returns every distinct configuration applied, in order.
func (t *Translator) Configures() []persona.ClientConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]persona.ClientConfig(nil), t.configures...)
}

// Config returns the active configuration.
func (t *Translator) Config() persona.ClientConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

var _ translate.Translator = (*Translator)(nil)
