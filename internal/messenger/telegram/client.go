package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// longPollTimeout is sent to Telegram as the getUpdates timeout; the HTTP
// client allows a margin on top of it.
const longPollTimeout = 30 * time.Second

// Update is one entry of a getUpdates response.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an incoming Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ TelegramAPI = (*Client)(nil) //nolint:gochecknoglobals // compile-time check

// NewClient creates a Bot API client. baseURL is overridable for tests; pass
// empty for the production endpoint.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: longPollTimeout + 10*time.Second,
		},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram.Client.call: marshal params: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram.Client.call: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram.Client.call: %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope apiResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr != nil {
		return fmt.Errorf("telegram.Client.call: decode %s response: %w", method, decodeErr)
	}

	if !envelope.OK {
		return fmt.Errorf("telegram.Client.call: %s: api error: %s", method, envelope.Description)
	}

	if out != nil {
		if unmarshalErr := json.Unmarshal(envelope.Result, out); unmarshalErr != nil {
			return fmt.Errorf("telegram.Client.call: unmarshal %s result: %w", method, unmarshalErr)
		}
	}
	return nil
}

// SendMessage posts a message to a chat and returns its message ID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, &msg)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(msg.MessageID, 10), nil
}

// SendReply posts a message replying to an earlier one.
func (c *Client) SendReply(ctx context.Context, chatID, replyToMessageID, text string) (string, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id":             chatID,
		"text":                text,
		"reply_to_message_id": replyToMessageID,
	}, &msg)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(msg.MessageID, 10), nil
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": int(longPollTimeout.Seconds()),
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}
