// Package history keeps the last few user messages of each chat so intent
// classification and the chat handlers can see recent context.
package history

import (
	"context"
	"strings"
)

// Store records user messages per chat. Recent returns at most the
// configured number of messages, newest first.
type Store interface {
	Recent(ctx context.Context, chatID string) ([]string, error)
	Add(ctx context.Context, chatID, text string) error
}

// Format renders history for a prompt, one message per line, padded with
// empty lines up to size so prompts keep a fixed shape.
func Format(msgs []string, size int) string {
	lines := make([]string, max(size, len(msgs)))
	copy(lines, msgs)
	return "\n" + strings.Join(lines, "\n") + "\n"
}
