// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote model API (Gemini, an OpenAI-compatible
// endpoint, or any backend reachable through any-llm-go) and exposes a uniform
// interface for the translation client to stream completions without coupling
// to a specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/Pavlo4242/bluethai/pkg/types"
)

// FinishReasonError marks a Chunk that carries a mid-stream failure. The
// error text is in Chunk.Text.
const FinishReasonError = "error"

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. For translation this is a single
	// "user" message holding the source text.
	Messages []types.Message

	// SystemPrompt is the persona instruction. Providers without a dedicated
	// system field prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int
}

// Chunk is a single fragment emitted by a streaming completion. Text is a
// delta: consumers that need the full text so far must accumulate it.
type Chunk struct {
	// Text is the incremental text content of this chunk. For an error chunk
	// it holds the error message.
	Text string

	// FinishReason is set on the final chunk. Common values are "stop",
	// "length", FinishReasonError and "" (non-final chunk).
	FinishReason string
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// StreamCompletion sends req to the model and returns a channel that
	// emits Chunk values as they arrive. The channel is closed when generation
	// finishes or ctx is cancelled.
	//
	// The initial error return is non-nil only for failures that prevent the
	// stream from starting. Later failures arrive as a Chunk whose
	// FinishReason is FinishReasonError.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() types.ModelCapabilities
}
