// Package anthropicprovider wraps github.com/anthropics/anthropic-sdk-go as
// one concrete llm.Provider, grounded on jordigilh-kubernaut's go.mod
// dependency on the same SDK (the pack's code using it is test-only, so the
// call shape here follows the SDK's own public API).
package anthropicprovider

import (
	"context"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// Client adapts the Anthropic Messages API to the normalized Request/
// Response shape the rest of internal/llm uses.
type Client struct {
	sdk anthropic.Client
}

// NewClient builds a Client authenticated with apiKey.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		sdk: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

// Name identifies this provider for journaling and routing.
func (c *Client) Name() string { return "anthropic" }

// Request mirrors llm.Request to keep this package importable standalone.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response mirrors llm.Response.
type Response struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Complete issues one Messages.New call against the Anthropic API.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	model := anthropic.Model(req.Model)
	if req.Model == "" {
		model = anthropic.ModelClaude3_5HaikuLatest
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		Content:      content,
		PromptTokens: int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// classifyError maps SDK errors into the application's error taxonomy.
// The SDK surfaces HTTP-status-bearing errors for 4xx/5xx; anything else is
// treated as transient since it most often indicates a transport failure.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		switch {
		case apiErr.StatusCode == 429:
			return apperrors.RateLimited(apperrors.CodeLLMRateLimited, apiErr.Error())
		case apiErr.StatusCode >= 500:
			return apperrors.WrapTransient(err, apperrors.CodeLLMRequestFailed, "anthropic server error")
		case apiErr.StatusCode >= 400:
			return apperrors.WrapPermanent(err, apperrors.CodeLLMRequestFailed, "anthropic rejected the request")
		}
	}
	return apperrors.WrapTransient(err, apperrors.CodeLLMRequestFailed, "anthropic request failed")
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	ae, ok := err.(*anthropic.Error)
	if !ok {
		return false
	}
	*target = ae
	return true
}
