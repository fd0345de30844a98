package slack_test

import (
	"context"
	"errors"
	"testing"

	slacklib "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/duet/internal/messenger"
	duetslack "github.com/gosuda/duet/internal/messenger/slack"
)

// mockSlackAPI records PostMessage calls.
type mockSlackAPI struct {
	channels []string
	optCount []int
	ts       string
	err      error
}

func (m *mockSlackAPI) PostMessage(channelID string, options ...slacklib.MsgOption) (string, string, error) {
	m.channels = append(m.channels, channelID)
	m.optCount = append(m.optCount, len(options))
	if m.err != nil {
		return "", "", m.err
	}
	return channelID, m.ts, nil
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		api := &mockSlackAPI{ts: "1700000000.000100"}
		m := duetslack.NewSlackMessenger(api)

		id, err := m.SendMessage(context.Background(), "C123", "hello channel")

		require.NoError(t, err)
		assert.Equal(t, messenger.MessageID("1700000000.000100"), id)
		assert.Equal(t, []string{"C123"}, api.channels)
	})

	t.Run("api error", func(t *testing.T) {
		t.Parallel()

		api := &mockSlackAPI{err: errors.New("channel_not_found")}
		m := duetslack.NewSlackMessenger(api)

		_, err := m.SendMessage(context.Background(), "C404", "hello")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel_not_found")
	})
}

func TestReply(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		api := &mockSlackAPI{ts: "1700000000.000200"}
		m := duetslack.NewSlackMessenger(api)

		id, err := m.Reply(context.Background(), "C123", "1700000000.000100", "threaded reply")

		require.NoError(t, err)
		assert.Equal(t, messenger.MessageID("1700000000.000200"), id)
		require.Len(t, api.optCount, 1)
		assert.Equal(t, 2, api.optCount[0], "reply must carry both thread and text options")
	})

	t.Run("api error", func(t *testing.T) {
		t.Parallel()

		api := &mockSlackAPI{err: errors.New("is_archived")}
		m := duetslack.NewSlackMessenger(api)

		_, err := m.Reply(context.Background(), "C123", "1.0", "reply")

		require.Error(t, err)
	})
}

func TestPlatform(t *testing.T) {
	t.Parallel()

	m := duetslack.NewSlackMessenger(&mockSlackAPI{})
	assert.Equal(t, "slack", m.Platform())
}
