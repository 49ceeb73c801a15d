package resilience

import (
	"context"
	"errors"

	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// LLMFallback implements [llm.Provider] with failover across LLM backends.
//
// For streams, the first chunk decides: a stream whose first chunk is an
// error chunk counts as a failed start and the next backend is tried. Once
// text has arrived the stream is committed and later errors reach the caller.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional LLM provider.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Names lists the backends in failover order.
func (f *LLMFallback) Names() []string { return f.group.Names() }

// Complete sends the request to the first healthy provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion starts a stream on the first provider whose first chunk is
// not an error.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		ch, err := p.StreamCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		return peekStream(ctx, ch)
	})
}

// Capabilities returns the primary's capabilities.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	return f.group.primary().Capabilities()
}

// peekStream waits for the first chunk of ch. An error chunk (or a cancelled
// context) becomes an error return; otherwise the chunk is replayed in front
// of the rest of the stream.
func peekStream(ctx context.Context, ch <-chan llm.Chunk) (<-chan llm.Chunk, error) {
	var first llm.Chunk
	var ok bool
	select {
	case first, ok = <-ch:
	case <-ctx.Done():
		go drain(ch)
		return nil, ctx.Err()
	}
	if !ok {
		out := make(chan llm.Chunk)
		close(out)
		return out, nil
	}
	if first.FinishReason == llm.FinishReasonError {
		go drain(ch)
		return nil, errors.New(first.Text)
	}

	out := make(chan llm.Chunk, cap(ch)+1)
	out <- first
	go func() {
		defer close(out)
		for c := range ch {
			select {
			case out <- c:
			case <-ctx.Done():
				drain(ch)
				return
			}
		}
	}()
	return out, nil
}

func drain(ch <-chan llm.Chunk) {
	for range ch {
	}
}

// Async returns f as a provider whose StreamCompletion returns at once. The
// failover, including the wait for each backend's first chunk, runs in the
// background; when every backend fails the stream carries one error chunk.
func (f *LLMFallback) Async() llm.Provider {
	return asyncFallback{f}
}

type asyncFallback struct {
	*LLMFallback
}

func (a asyncFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk, 1)
	go func() {
		defer close(out)
		ch, err := a.LLMFallback.StreamCompletion(ctx, req)
		if err != nil {
			select {
			case out <- llm.Chunk{Text: err.Error(), FinishReason: llm.FinishReasonError}:
			case <-ctx.Done():
			}
			return
		}
		for c := range ch {
			select {
			case out <- c:
			case <-ctx.Done():
				drain(ch)
				return
			}
		}
	}()
	return out, nil
}
