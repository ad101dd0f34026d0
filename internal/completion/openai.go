// Package completion adapts an OpenAI-compatible chat completions API to a
// single-turn request/response call. No conversation memory is kept across
// calls.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ektifabot/internal/domain"
)

// Client implements domain.Completer for OpenAI-compatible APIs.
type Client struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  newHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("completion backend not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("completion backend: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("completion backend returned %d", resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Complete sends one system+user exchange and returns the first choice.
// Quota, network, and malformed-response failures are explicit error values.
func (c *Client) Complete(ctx context.Context, userText, systemPrompt string) (domain.CompletionResult, error) {
	body := oaiRequest{
		Model: c.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("marshal: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}

	resp, err := doWithRetry(ctx, c.client, buildReq, c.logger)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.CompletionResult{}, fmt.Errorf("completion backend %d: %s", resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("decode: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return domain.CompletionResult{}, fmt.Errorf("completion backend returned no choices")
	}

	return domain.CompletionResult{Body: oaiResp.Choices[0].Message.Content}, nil
}
