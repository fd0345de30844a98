// Package gemini implements the provider capability on top of the Google
// generative language API using plain HTTP.
package gemini

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

// Client calls the generateContent endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ provider.Service = (*Client)(nil) //nolint:gochecknoglobals // compile-time check

// New creates a Gemini client from settings. A missing API key yields a
// client whose Generate fails with provider.ErrUnavailable.
func New(settings provider.Settings) (provider.Service, error) {
	return &Client{
		apiKey:     settings.APIKey,
		model:      settings.Model,
		baseURL:    settings.BaseURL,
		httpClient: &http.Client{},
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends a generateContent request and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt string, role provider.Role) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini.Client.Generate: %w", provider.ErrUnavailable)
	}

	reqBody := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}, Role: "user"},
		},
		GenerationConfig: generationConfig{
			Temperature:     role.Temperature(),
			MaxOutputTokens: 2048,
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini.Client.Generate: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gemini.Client.Generate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("gemini.Client.Generate: timeout: %w", provider.ErrProvider)
		}
		return "", fmt.Errorf("gemini.Client.Generate: %v: %w", err, provider.ErrProvider)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini.Client.Generate: read body: %w", provider.ErrProvider)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini.Client.Generate: status %d: %w", resp.StatusCode, classifyStatus(resp.StatusCode))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gemini.Client.Generate: decode: %w", provider.ErrProvider)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini.Client.Generate: empty candidates: %w", provider.ErrProvider)
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// Name identifies the provider.
func (c *Client) Name() string {
	return "gemini"
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
