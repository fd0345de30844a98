package telegram

import (
	"context"
	"fmt"

	"github.com/gosuda/duet/internal/messenger"
)

// TelegramAPI abstracts the subset of the Telegram Bot API used by this
// package. This allows testing without real HTTP calls.
type TelegramAPI interface {
	SendMessage(ctx context.Context, chatID, text string) (messageID string, err error)
	SendReply(ctx context.Context, chatID, replyToMessageID, text string) (messageID string, err error)
	GetUpdates(ctx context.Context, offset int64) ([]Update, error)
}

// TelegramMessenger implements messenger.Messenger for Telegram.
type TelegramMessenger struct {
	api TelegramAPI
}

// Compile-time interface check.
var _ messenger.Messenger = (*TelegramMessenger)(nil) //nolint:gochecknoglobals // compile-time check

// NewTelegramMessenger creates a TelegramMessenger with the given API client.
func NewTelegramMessenger(api TelegramAPI) *TelegramMessenger {
	return &TelegramMessenger{api: api}
}

// SendMessage posts a text message to a Telegram chat and returns the message
// ID.
func (m *TelegramMessenger) SendMessage(ctx context.Context, channelID, text string) (messenger.MessageID, error) {
	msgID, err := m.api.SendMessage(ctx, channelID, text)
	if err != nil {
		return "", fmt.Errorf("telegram.TelegramMessenger.SendMessage: %w", err)
	}

	return messenger.MessageID(msgID), nil
}

// Reply posts a reply to an earlier message using Telegram's reply mechanism.
func (m *TelegramMessenger) Reply(ctx context.Context, channelID string, parentID messenger.MessageID, text string) (messenger.MessageID, error) {
	replyID, err := m.api.SendReply(ctx, channelID, string(parentID), text)
	if err != nil {
		return "", fmt.Errorf("telegram.TelegramMessenger.Reply: %w", err)
	}

	return messenger.MessageID(replyID), nil
}

// Platform returns the messenger platform identifier.
func (m *TelegramMessenger) Platform() string {
	return "telegram"
}
