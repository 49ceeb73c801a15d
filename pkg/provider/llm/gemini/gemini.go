// Package gemini provides an LLM provider backed by the Google Gen AI SDK
// (google.golang.org/genai). It is the default translation backend.
//
// Unlike the generic any-llm backend, this provider sets per-category safety
// thresholds. Bar-talk personas routinely trip the default filters, so every
// harm category is relaxed to the configured threshold (BLOCK_NONE by default).
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// harmCategories are the categories the Gemini API accepts thresholds for.
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// Provider implements llm.Provider on top of the Gemini API.
type Provider struct {
	client    *genai.Client
	model     string
	threshold genai.HarmBlockThreshold
}

type config struct {
	baseURL   string
	threshold genai.HarmBlockThreshold
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithSafetyThreshold sets the block threshold applied to every harm
// category, e.g. "BLOCK_NONE" or "BLOCK_ONLY_HIGH".
func WithSafetyThreshold(threshold string) Option {
	return func(c *config) { c.threshold = genai.HarmBlockThreshold(threshold) }
}

// New constructs a Gemini provider for the given model ("gemini-1.5-flash").
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	cfg := &config{threshold: genai.HarmBlockThresholdBlockNone}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Provider{client: client, model: model, threshold: cfg.threshold}, nil
}

// Model returns the model identifier this provider was built for.
func (p *Provider) Model() string { return p.model }

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: request has no messages")
	}
	contents := convertMessages(req.Messages)
	gc := p.generateConfig(req)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, gc) {
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case ch <- llm.Chunk{FinishReason: llm.FinishReasonError, Text: err.Error()}:
				case <-ctx.Done():
				}
				return
			}
			out := llm.Chunk{Text: resp.Text()}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				out.FinishReason = strings.ToLower(string(resp.Candidates[0].FinishReason))
			}
			if out.Text == "" && out.FinishReason == "" {
				continue
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: request has no messages")
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, convertMessages(req.Messages), p.generateConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	out := &llm.CompletionResponse{Content: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	caps := types.ModelCapabilities{
		ContextWindow:          1_048_576,
		MaxOutputTokens:        8_192,
		SupportsStreaming:      true,
		SupportsSafetySettings: true,
	}
	if strings.Contains(strings.ToLower(p.model), "1.5-pro") {
		caps.ContextWindow = 2_097_152
	}
	return caps
}

func (p *Provider) generateConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		gc.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	for _, c := range harmCategories {
		gc.SafetySettings = append(gc.SafetySettings, &genai.SafetySetting{
			Category:  c,
			Threshold: p.threshold,
		})
	}
	return gc
}

// convertMessages maps chat roles onto Gemini's user/model roles. System
// messages inside the history are sent as user turns; the dedicated system
// instruction travels in GenerateContentConfig.
func convertMessages(msgs []types.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}
