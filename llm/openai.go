package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type openAIProvider struct {
	client *http.Client
	apiKey string
	apiURL string
	model  string
}

func newOpenAIProvider(client *http.Client, apiURL, apiKey, model string) *openAIProvider {
	apiURL = strings.TrimRight(apiURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &openAIProvider{
		client: client,
		apiKey: apiKey,
		apiURL: apiURL,
		model:  model,
	}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	body := openAIRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = DefaultMaxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, Message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, req.Messages...)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("marshal request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(raw))
		var oe openAIError
		if json.Unmarshal(raw, &oe) == nil && oe.Error.Message != "" {
			msg = oe.Error.Message
		}
		return nil, &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: msg}
	}

	var out openAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: ErrEmptyResponse}
	}
	return &Response{
		Content:      out.Choices[0].Message.Content,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}
