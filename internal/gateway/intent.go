package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lagobot/lago"
)

const topicPrompt = `You're going to help a chatbot decide on what next action to take.
You have 3 options:
- the user just wants to chat
- the user wants to get an image from you
- the user wants to put something in their calendar

Return a JSON object with a single "intent" field: {"intent":"chat"}, {"intent":"image"} or {"intent":"calendar"}.
If in doubt, prefer chat. Respond with ONLY the JSON object.`

// ClassifyIntent asks the intent LLM which handler should answer text.
// Errors fall back to chat, the handler that can answer anything.
func ClassifyIntent(ctx context.Context, llm lago.Provider, text, history string) lago.Intent {
	resp, err := llm.Chat(ctx, lago.ChatRequest{
		Messages: []lago.ChatMessage{
			lago.SystemMessage(topicPrompt),
			lago.UserMessage(withHistory(history, text)),
		},
	})
	if err != nil {
		return lago.IntentChat
	}
	return ParseIntent(resp.Content)
}

// ParseIntent reads {"intent": "..."} or a bare single word. Anything else
// is chat.
func ParseIntent(response string) lago.Intent {
	word := response
	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err == nil {
		word = parsed.Intent
	}
	switch strings.ToLower(strings.Trim(strings.TrimSpace(word), `."'`)) {
	case "image":
		return lago.IntentImage
	case "calendar":
		return lago.IntentCalendar
	default:
		return lago.IntentChat
	}
}

// extractJSON finds the first JSON object in a string (handles code fences).
func extractJSON(input string) string {
	s := strings.TrimSpace(input)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(s, fence) {
			s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, fence), "```"))
			break
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
