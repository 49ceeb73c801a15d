// Package anyllm provides a multi-backend LLM provider backed by
// github.com/mozilla-ai/any-llm-go. It lets the translator run against
// Anthropic, Ollama, DeepSeek, Mistral, Groq or a local llama.cpp server
// when Gemini is not wanted.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "llama3.1:8b")
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// finishContentFilter is the normalised finish reason backends report when
// moderation stopped the output.
const finishContentFilter = "content_filter"

type backendFunc func(...anyllmlib.Option) (anyllmlib.Provider, error)

// backends maps accepted backend names to their constructors.
var backends = map[string]backendFunc{
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"llamacpp":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) },
	"llamafile": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) },
}

// Backends returns the accepted backend names, sorted.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// Provider adapts an any-llm-go backend to llm.Provider.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider for the named backend and model. Without
// anyllmlib.WithAPIKey the backend reads its usual environment variable
// (GEMINI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backendName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	switch {
	case backendName == "":
		return nil, fmt.Errorf("anyllm: backend name must not be empty")
	case model == "":
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	name := strings.ToLower(backendName)
	mk, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q; supported: %s", backendName, strings.Join(Backends(), ", "))
	}
	backend, err := mk(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", name, err)
	}
	return &Provider{backend: backend, name: name, model: model}, nil
}

// StreamCompletion implements llm.Provider. Backend errors surface as a
// final error chunk once the backend stream is drained.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("anyllm: request has no messages")
	}
	chunks, errs := p.backend.CompletionStream(ctx, p.buildParams(req))

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		send := func(c llm.Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for c := range chunks {
			if len(c.Choices) == 0 {
				continue
			}
			choice := c.Choices[0]
			if choice.Delta.Content != "" && !send(llm.Chunk{Text: choice.Delta.Content}) {
				return
			}
			if choice.FinishReason != "" && !send(p.finishChunk(choice.FinishReason)) {
				return
			}
		}
		if err := <-errs; err != nil {
			send(llm.Chunk{FinishReason: llm.FinishReasonError, Text: fmt.Sprintf("anyllm %s: %v", p.name, err)})
		}
	}()
	return ch, nil
}

func (p *Provider) finishChunk(reason string) llm.Chunk {
	if reason == finishContentFilter {
		return llm.Chunk{FinishReason: llm.FinishReasonError, Text: "anyllm " + p.name + ": translation blocked by content filter"}
	}
	return llm.Chunk{FinishReason: reason}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm %s: completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm %s: no choices in response", p.name)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == finishContentFilter {
		return nil, fmt.Errorf("anyllm %s: translation blocked by content filter", p.name)
	}

	out := &llm.CompletionResponse{Content: choice.Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: messages}
	if t := req.Temperature; t != 0 {
		params.Temperature = &t
	}
	if n := req.MaxTokens; n > 0 {
		params.MaxTokens = &n
	}
	return params
}

func convertMessage(m types.Message) anyllmlib.Message {
	return anyllmlib.Message{Role: m.Role, Content: m.Content}
}

// familyLimits lists context and output limits by model family. match is a
// substring of the lowercased model name; the first match wins.
var familyLimits = []struct {
	match     string
	context   int
	maxOutput int
}{
	{"gemini-1.5-pro", 2_097_152, 8_192},
	{"gemini", 1_048_576, 8_192},
	{"claude", 200_000, 8_192},
	{"gpt-4o", 128_000, 16_384},
	{"deepseek", 64_000, 8_192},
	{"llama", 128_000, 4_096},
	{"qwen", 128_000, 4_096},
}

func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{SupportsStreaming: true, ContextWindow: 32_768, MaxOutputTokens: 4_096}
	lower := strings.ToLower(model)
	for _, f := range familyLimits {
		if strings.Contains(lower, f.match) {
			caps.ContextWindow, caps.MaxOutputTokens = f.context, f.maxOutput
			break
		}
	}
	return caps
}
