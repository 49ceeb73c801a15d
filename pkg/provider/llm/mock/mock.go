// Package mock is an in-memory llm.Provider for tests. It replays canned
// chunks and remembers every request it was given.
//
//	p := &mock.Provider{
//	    StreamChunks: []llm.Chunk{{Text: "สวัส"}, {Text: "ดี", FinishReason: "stop"}},
//	}
//
// Configure the exported fields before the first call.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// Provider implements llm.Provider from canned responses.
type Provider struct {
	// StreamChunks are replayed, in order, by each StreamCompletion call.
	StreamChunks []llm.Chunk

	// StreamFunc overrides StreamChunks when set.
	StreamFunc func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error)

	// StreamErr makes StreamCompletion fail before any chunk.
	StreamErr error

	CompleteResponse  *llm.CompletionResponse
	CompleteErr       error
	ModelCapabilities types.ModelCapabilities

	mu       sync.Mutex
	streamed []llm.CompletionRequest
	complete []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.streamed = append(p.streamed, req)
	fn, err, chunks := p.StreamFunc, p.StreamErr, slices.Clone(p.StreamChunks)
	p.mu.Unlock()

	switch {
	case err != nil:
		return nil, err
	case fn != nil:
		return fn(ctx, req)
	}

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.complete = append(p.complete, req)
	return p.CompleteResponse, p.CompleteErr
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities { return p.ModelCapabilities }

// StreamCallCount reports how many streams were requested.
func (p *Provider) StreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streamed)
}

// CompleteCallCount reports how many Complete calls were made.
func (p *Provider) CompleteCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.complete)
}

// LastStreamRequest returns the newest streamed request, or false if none.
func (p *Provider) LastStreamRequest() (llm.CompletionRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streamed) == 0 {
		return llm.CompletionRequest{}, false
	}
	return p.streamed[len(p.streamed)-1], true
}
