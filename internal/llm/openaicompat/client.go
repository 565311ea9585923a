// Package openaicompat is a hand-rolled client for the OpenAI-compatible
// chat-completion contract (spec.md §6): request fields model/messages/
// temperature/max_tokens, response field choices[0].message.content plus
// usage counts. No example in the retrieval pack ships a generic
// OpenAI-compatible client, so this is the one component of the LLM stack
// built on net/http directly instead of an ecosystem SDK (see DESIGN.md).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// Client talks to any OpenAI-compatible chat-completion endpoint (local
// Ollama, vLLM, OpenRouter, or OpenAI itself).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	name       string
}

// NewClient builds a Client. name is the provider identity recorded on
// LLMRun rows (e.g. "openai-compat:ollama").
func NewClient(name, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}, baseURL: baseURL, apiKey: apiKey, name: name}
}

// Name identifies this provider instance for journaling and routing.
func (c *Client) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Request is the normalized input shape (mirrors llm.Request without the
// import, to keep this package standalone and reusable).
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response is the normalized output shape.
type Response struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Complete issues one chat-completion call.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(chatRequest{
		Model: req.Model, Messages: messages,
		Temperature: req.Temperature, MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, apperrors.WrapPermanent(err, apperrors.CodeLLMRequestFailed, "marshal chat completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.WrapPermanent(err, apperrors.CodeLLMRequestFailed, "build chat completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeLLMRequestFailed, "chat completion request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeLLMRequestFailed, "read chat completion response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.RateLimited(apperrors.CodeLLMRateLimited, "provider rate limited the request")
	}
	if resp.StatusCode >= 500 {
		return nil, apperrors.WrapTransient(fmt.Errorf("status %d: %s", resp.StatusCode, respBody), apperrors.CodeLLMRequestFailed, "provider returned a server error")
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.WrapPermanent(fmt.Errorf("status %d: %s", resp.StatusCode, respBody), apperrors.CodeLLMRequestFailed, "provider rejected the request")
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, apperrors.WrapPermanent(err, apperrors.CodeLLMRequestFailed, "decode chat completion response")
	}
	if decoded.Error != nil {
		return nil, apperrors.Permanent(apperrors.CodeLLMRequestFailed, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeLLMRequestFailed, "provider returned no choices")
	}

	return &Response{
		Content:      decoded.Choices[0].Message.Content,
		PromptTokens: decoded.Usage.PromptTokens,
		OutputTokens: decoded.Usage.CompletionTokens,
	}, nil
}
