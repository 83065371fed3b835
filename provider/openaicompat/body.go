package openaicompat

import (
	"strings"

	"github.com/lagobot/lago"
)

// BuildBody converts lago ChatMessages and a model name into an
// OpenAI-format ChatRequest. Options configure generation parameters.
func BuildBody(messages []lago.ChatMessage, model string, opts ...Option) ChatRequest {
	msgs := make([]Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	req := ChatRequest{
		Model:    model,
		Messages: msgs,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// BuildPrompt flattens chat messages into a single prompt for the legacy
// completions endpoint. A lone user message is passed through unchanged.
func BuildPrompt(messages []lago.ChatMessage) string {
	if len(messages) == 1 && messages[0].Role == "user" {
		return messages[0].Content
	}
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case "system":
			b.WriteString(m.Content)
		case "assistant":
			b.WriteString("Assistant: " + m.Content)
		default:
			b.WriteString("User: " + m.Content)
		}
		b.WriteString("\n\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

// BuildCompletionBody turns chat messages into a legacy completion request.
// Chat options are mapped onto the matching completion fields.
func BuildCompletionBody(messages []lago.ChatMessage, model string, opts ...Option) CompletionRequest {
	chat := BuildBody(nil, model, opts...)
	return CompletionRequest{
		Model:            model,
		Prompt:           BuildPrompt(messages),
		Temperature:      chat.Temperature,
		TopP:             chat.TopP,
		MaxTokens:        chat.MaxTokens,
		FrequencyPenalty: chat.FrequencyPenalty,
		PresencePenalty:  chat.PresencePenalty,
	}
}
