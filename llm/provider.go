// Language model client abstraction with Anthropic and OpenAI providers.
//
// Providers are non-streaming: the agent only needs the final text and the
// token usage for cost accounting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	// Model is the friendly model name, not the provider's API identifier.
	Model string
}

var ErrEmptyResponse = errors.New("model returned no content")

// ProviderError wraps any failure talking to a model provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Throttled reports whether the provider refused the request for rate reasons.
func (e *ProviderError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Usage is the cumulative token usage of a Client.
type Usage struct {
	Calls        int    `json:"calls"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
}

// Client is a validated provider plus cumulative usage accounting.
type Client struct {
	provider Provider
	name     string
	model    string

	mu    sync.Mutex
	usage Usage
}

func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Model = c.model

	c.mu.Lock()
	c.usage.Calls++
	c.usage.InputTokens += resp.InputTokens
	c.usage.OutputTokens += resp.OutputTokens
	c.mu.Unlock()
	return resp, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Provider() string {
	return c.name
}

func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.usage
	u.Model = c.model
	u.Provider = c.name
	return u
}
