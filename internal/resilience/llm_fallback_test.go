package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	llmmock "github.com/Pavlo4242/bluethai/pkg/provider/llm/mock"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

func collect(ch <-chan llm.Chunk) string {
	var b strings.Builder
	for c := range ch {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("quota exceeded")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "สวัสดี"}}

	fb := NewLLMFallback(primary, "gemini", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "สวัสดี" {
		t.Fatalf("content = %q, want สวัสดี", resp.Content)
	}
	if primary.CompleteCallCount() != 1 || secondary.CompleteCallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CompleteCallCount(), secondary.CompleteCallCount())
	}
}

func TestLLMFallback_Stream_StartError(t *testing.T) {
	primary := &llmmock.Provider{StreamErr: errors.New("dial failed")}
	secondary := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "สวัส"}, {Text: "ดี", FinishReason: "stop"}},
	}

	fb := NewLLMFallback(primary, "gemini", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := collect(ch); got != "สวัสดี" {
		t.Fatalf("got %q, want สวัสดี", got)
	}
}

func TestLLMFallback_Stream_FirstChunkError(t *testing.T) {
	primary := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{FinishReason: llm.FinishReasonError, Text: "API key not valid"}},
	}
	secondary := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hello", FinishReason: "stop"}},
	}

	fb := NewLLMFallback(primary, "gemini", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := collect(ch); got != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
	if secondary.StreamCallCount() != 1 {
		t.Fatalf("secondary stream calls = %d, want 1", secondary.StreamCallCount())
	}
}

func TestLLMFallback_Stream_MidStreamErrorCommitted(t *testing.T) {
	primary := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hel"}, {FinishReason: llm.FinishReasonError, Text: "reset"}},
	}
	secondary := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "other"}}}

	fb := NewLLMFallback(primary, "gemini", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawErr bool
	for c := range ch {
		if c.FinishReason == llm.FinishReasonError {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected the mid-stream error to reach the caller")
	}
	if secondary.StreamCallCount() != 0 {
		t.Fatal("secondary must not be tried once the primary produced text")
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	primary := &llmmock.Provider{
		ModelCapabilities: types.ModelCapabilities{ContextWindow: 1_048_576, SupportsSafetySettings: true},
	}
	fb := NewLLMFallback(primary, "gemini", FallbackConfig{})

	caps := fb.Capabilities()
	if caps.ContextWindow != 1_048_576 || !caps.SupportsSafetySettings {
		t.Fatalf("Capabilities() = %+v", caps)
	}
}

func TestLLMFallback_Async(t *testing.T) {
	release := make(chan struct{})
	slow := &llmmock.Provider{
		StreamFunc: func(ctx context.Context, _ llm.CompletionRequest) (<-chan llm.Chunk, error) {
			ch := make(chan llm.Chunk, 1)
			go func() {
				defer close(ch)
				<-release
				ch <- llm.Chunk{Text: "ครับ", FinishReason: "stop"}
			}()
			return ch, nil
		},
	}
	fb := NewLLMFallback(slow, "gemini", FallbackConfig{})

	// Returns before the first chunk exists.
	ch, err := fb.Async().StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	if got := collect(ch); got != "ครับ" {
		t.Fatalf("got %q, want ครับ", got)
	}
}

func TestLLMFallback_AsyncAllFailed(t *testing.T) {
	fb := NewLLMFallback(&llmmock.Provider{StreamErr: errors.New("dial failed")}, "gemini", FallbackConfig{})
	fb.AddFallback("openai", &llmmock.Provider{StreamErr: errors.New("quota exceeded")})

	ch, err := fb.Async().StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var chunks []llm.Chunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	if len(chunks) != 1 || chunks[0].FinishReason != llm.FinishReasonError {
		t.Fatalf("chunks = %+v, want one error chunk", chunks)
	}
	if !strings.Contains(chunks[0].Text, ErrAllFailed.Error()) {
		t.Errorf("error text = %q, want it to mention %q", chunks[0].Text, ErrAllFailed)
	}
}
