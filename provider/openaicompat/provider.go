package openaicompat

import (
	"context"

	"github.com/lagobot/lago"
)

// Provider implements lago.Provider for any OpenAI-compatible chat
// completions API (OpenAI, Groq, Together, Ollama, vLLM, LM Studio, ...).
type Provider struct {
	client
}

var _ lago.Provider = (*Provider)(nil)

// NewProvider creates a chat provider.
//
//	p := openaicompat.NewProvider("sk-xxx", "gpt-4o-mini", "https://api.openai.com/v1")
//	p := openaicompat.NewProvider("", "llama3", "http://localhost:11434/v1",
//	    openaicompat.WithName("ollama"),
//	    openaicompat.WithOptions(openaicompat.WithTemperature(0.2)),
//	)
func NewProvider(apiKey, model, baseURL string, opts ...ProviderOption) *Provider {
	return &Provider{client: newClient(apiKey, model, baseURL, "openai", opts)}
}

func (p *Provider) Name() string { return p.name }

// Chat sends a chat completions request and returns the first choice.
func (p *Provider) Chat(ctx context.Context, req lago.ChatRequest) (lago.ChatResponse, error) {
	body := BuildBody(req.Messages, p.model, p.mergeGenParams(req.GenerationParams)...)
	var resp ChatResponse
	if err := p.postJSON(ctx, "/chat/completions", body, &resp); err != nil {
		return lago.ChatResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return lago.ChatResponse{}, &lago.ErrLLM{Provider: p.name, Message: "no choices in response"}
	}
	return ParseResponse(resp), nil
}

// CompletionProvider implements lago.Provider on the legacy /completions
// endpoint used by instruct models such as gpt-3.5-turbo-instruct.
type CompletionProvider struct {
	client
}

var _ lago.Provider = (*CompletionProvider)(nil)

// NewCompletionProvider creates a provider for the legacy completions API.
// Chat messages are flattened into one prompt. Requests carry top_p=1 and
// zero frequency and presence penalties unless opts override them.
func NewCompletionProvider(apiKey, model, baseURL string, opts ...ProviderOption) *CompletionProvider {
	defaults := WithOptions(WithTopP(1), WithFrequencyPenalty(0), WithPresencePenalty(0))
	opts = append([]ProviderOption{defaults}, opts...)
	return &CompletionProvider{client: newClient(apiKey, model, baseURL, "openai-completion", opts)}
}

func (p *CompletionProvider) Name() string { return p.name }

func (p *CompletionProvider) Chat(ctx context.Context, req lago.ChatRequest) (lago.ChatResponse, error) {
	body := BuildCompletionBody(req.Messages, p.model, p.mergeGenParams(req.GenerationParams)...)
	var resp ChatResponse
	if err := p.postJSON(ctx, "/completions", body, &resp); err != nil {
		return lago.ChatResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return lago.ChatResponse{}, &lago.ErrLLM{Provider: p.name, Message: "no choices in response"}
	}
	return ParseResponse(resp), nil
}
