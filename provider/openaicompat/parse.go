package openaicompat

import (
	"strings"

	"github.com/lagobot/lago"
)

// ParseResponse converts an OpenAI-format response to a lago ChatResponse.
// It reads choices[0] from either the chat (message) or the legacy
// completion (text) shape. Surrounding whitespace is trimmed.
func ParseResponse(resp ChatResponse) lago.ChatResponse {
	var out lago.ChatResponse
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		switch {
		case choice.Message != nil && choice.Message.Content != "":
			out.Content = choice.Message.Content
		case choice.Message != nil && choice.Message.Refusal != "":
			out.Content = choice.Message.Refusal
		default:
			out.Content = choice.Text
		}
		out.Content = strings.TrimSpace(out.Content)
	}
	if resp.Usage != nil {
		out.Usage = lago.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out
}
