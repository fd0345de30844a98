// Package messenger abstracts the chat platforms duet answers on.
package messenger

import (
	"context"
	"strings"
)

// MessageID uniquely identifies a message within a messenger platform.
type MessageID string

// Messenger abstracts communication with a chat platform (Slack, Telegram).
// Implementations handle platform-specific API calls; the interface is
// platform-agnostic.
type Messenger interface {
	// SendMessage posts a text message to a channel and returns its platform
	// message ID.
	SendMessage(ctx context.Context, channelID, text string) (MessageID, error)

	// Reply posts a threaded reply under a parent message.
	Reply(ctx context.Context, channelID string, parentID MessageID, text string) (MessageID, error)

	// Platform returns the messenger platform identifier (e.g. "slack").
	Platform() string
}

// Chunk splits text into pieces no longer than limit runes, preferring to
// break at line boundaries. Platforms cap message length (Telegram at 4096).
func Chunk(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := []rune(text)

	for len(remaining) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if remaining[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(remaining[:cut]), "\n"))
		remaining = remaining[cut:]
	}

	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}
	return chunks
}
