// Package llm talks to the external language-model collaborator. The service
// core only depends on the Completer interface so tests can substitute a
// deterministic stub.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const anthropicVersion = "2023-06-01"

// Message is a single prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer generates an assistant reply from a system prompt, prior turns,
// and the new user message.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, userMessage string) (string, error)
}

// AnthropicConfig carries the messages-API credentials and model choice.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// MaxTokens caps the reply length; defaults to 4096.
	MaxTokens int
}

// AnthropicClient implements Completer against the Anthropic messages API.
type AnthropicClient struct {
	cfg  AnthropicConfig
	http *resty.Client
}

var _ Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from static configuration.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &AnthropicClient{
		cfg:  cfg,
		http: resty.New().SetTimeout(120 * time.Second),
	}
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends the conversation to the messages API and returns the first
// text block of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt string, history []Message, userMessage string) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userMessage})

	var out anthropicResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.cfg.APIKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(anthropicRequest{
			Model:     c.cfg.Model,
			MaxTokens: c.cfg.MaxTokens,
			System:    systemPrompt,
			Messages:  messages,
		}).
		SetResult(&out).
		Post(c.cfg.BaseURL + "/v1/messages")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("anthropic api error: status=%d body=%s", resp.StatusCode(), resp.Body())
	}

	for _, block := range out.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic response contained no text block")
}
