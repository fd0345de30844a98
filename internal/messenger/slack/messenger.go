package slack

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/duet/internal/messenger"
)

// SlackAPI abstracts the subset of the Slack client used by SlackMessenger.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessage(channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackMessenger implements messenger.Messenger for Slack.
type SlackMessenger struct {
	api SlackAPI
}

// Compile-time interface check.
var _ messenger.Messenger = (*SlackMessenger)(nil) //nolint:gochecknoglobals // compile-time check

// NewSlackMessenger creates a SlackMessenger with the given API client.
func NewSlackMessenger(api SlackAPI) *SlackMessenger {
	return &SlackMessenger{api: api}
}

// SendMessage posts a text message to a Slack channel and returns the message
// timestamp as MessageID.
func (m *SlackMessenger) SendMessage(_ context.Context, channelID, text string) (messenger.MessageID, error) {
	_, ts, err := m.api.PostMessage(channelID, slacklib.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack.SlackMessenger.SendMessage: %w", err)
	}

	return messenger.MessageID(ts), nil
}

// Reply posts a threaded reply under a parent message.
func (m *SlackMessenger) Reply(_ context.Context, channelID string, parentID messenger.MessageID, text string) (messenger.MessageID, error) {
	_, ts, err := m.api.PostMessage(channelID,
		slacklib.MsgOptionTS(string(parentID)),
		slacklib.MsgOptionText(text, false),
	)
	if err != nil {
		return "", fmt.Errorf("slack.SlackMessenger.Reply: %w", err)
	}

	return messenger.MessageID(ts), nil
}

// Platform returns the messenger platform identifier.
func (m *SlackMessenger) Platform() string {
	return "slack"
}
