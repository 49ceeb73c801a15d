package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/Pavlo4242/bluethai/pkg/types"
)

// TextSource lets typed text stand in for speech. Submitted text is queued;
// an activation with queued text is answered from the queue with the same
// Listening and Final events a recogniser would produce. Without queued text
// the activation is delegated to the fallback Source, or, when there is none,
// waits for the next Submit.
type TextSource struct {
	fallback Source

	mu       sync.Mutex
	pending  []string
	current  *typedAttempt
	delegate bool
	closed   bool
	wg       sync.WaitGroup
}

type typedAttempt struct {
	input chan string
	*attempt
}

// NewTextSource returns a TextSource. fallback may be nil.
func NewTextSource(fallback Source) *TextSource {
	return &TextSource{fallback: fallback}
}

// Submit queues text for the next activation, or completes an activation
// already waiting for input. Blank text is ignored.
func (t *TextSource) Submit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		select {
		case t.current.input <- text:
			return
		default:
		}
	}
	t.pending = append(t.pending, text)
}

// Pending reports whether submitted text is waiting for an activation.
func (t *TextSource) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

// Activate implements [Source].
func (t *TextSource) Activate(ctx context.Context, lang types.Language) (<-chan RecognitionEvent, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.current != nil {
		t.current.cancel()
		t.current = nil
	}
	if len(t.pending) == 0 && t.fallback != nil {
		t.delegate = true
		t.mu.Unlock()
		return t.fallback.Activate(ctx, lang)
	}
	t.delegate = false

	ctx, cancel := context.WithCancel(ctx)
	ta := &typedAttempt{
		input:   make(chan string, 1),
		attempt: &attempt{cancel: cancel, stop: make(chan struct{})},
	}
	if len(t.pending) > 0 {
		ta.input <- t.pending[0]
		t.pending = t.pending[1:]
	}
	t.current = ta
	t.mu.Unlock()

	events := make(chan RecognitionEvent, 2)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(events)
		defer func() {
			cancel()
			t.mu.Lock()
			if t.current == ta {
				t.current = nil
			}
			t.mu.Unlock()
		}()

		events <- Listening()
		select {
		case text := <-ta.input:
			events <- Final(text)
		case <-ta.stop:
			events <- Idle()
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// Deactivate implements [Source]. A typed activation still waiting for input
// ends with Idle.
func (t *TextSource) Deactivate() {
	t.mu.Lock()
	current, delegate := t.current, t.delegate
	t.mu.Unlock()
	switch {
	case current != nil:
		current.deactivate()
	case delegate:
		t.fallback.Deactivate()
	}
}

// Close implements [Source].
func (t *TextSource) Close() error {
	t.mu.Lock()
	t.closed = true
	if t.current != nil {
		t.current.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	if t.fallback != nil {
		return t.fallback.Close()
	}
	return nil
}

var _ Source = (*TextSource)(nil)
