// Package openai implements the provider capability on top of the OpenAI
// chat completions API using plain HTTP.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gosuda/duet/internal/provider"
)

const defaultSystemPrompt = "You are a helpful AI assistant focused on executing tasks accurately and thoroughly."

// Client calls the OpenAI chat completions endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ provider.Service = (*Client)(nil) //nolint:gochecknoglobals // compile-time check

// New creates an OpenAI client from settings. A missing API key yields a
// client whose Generate fails with provider.ErrUnavailable.
func New(settings provider.Settings) (provider.Service, error) {
	return &Client{
		apiKey:     settings.APIKey,
		model:      settings.Model,
		baseURL:    settings.BaseURL,
		httpClient: &http.Client{},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends a chat completion request and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string, role provider.Role) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai.Client.Generate: %w", provider.ErrUnavailable)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: defaultSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: role.Temperature(),
		MaxTokens:   2048,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai.Client.Generate: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("openai.Client.Generate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openai.Client.Generate: timeout: %w", provider.ErrProvider)
		}
		return "", fmt.Errorf("openai.Client.Generate: %v: %w", err, provider.ErrProvider)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai.Client.Generate: read body: %w", provider.ErrProvider)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai.Client.Generate: status %d: %w", resp.StatusCode, classifyStatus(resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai.Client.Generate: decode: %w", provider.ErrProvider)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai.Client.Generate: empty choices: %w", provider.ErrProvider)
	}

	return parsed.Choices[0].Message.Content, nil
}

// Name identifies the provider.
func (c *Client) Name() string {
	return "openai"
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return provider.ErrAuth
	case code >= 400:
		return provider.ErrProvider
	default:
		return provider.ErrUnknown
	}
}
