package llm

import (
	"context"

	"sempervigil.dev/sempervigil/internal/llm/anthropicprovider"
	"sempervigil.dev/sempervigil/internal/llm/openaicompat"
)

// openAICompatAdapter satisfies Provider by forwarding to an
// openaicompat.Client, translating between the two packages' identical but
// independently-declared Request/Response shapes.
type openAICompatAdapter struct{ client *openaicompat.Client }

// NewOpenAICompatProvider wraps an openaicompat.Client as a Provider.
func NewOpenAICompatProvider(client *openaicompat.Client) Provider {
	return &openAICompatAdapter{client: client}
}

func (a *openAICompatAdapter) Name() string { return a.client.Name() }

func (a *openAICompatAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := a.client.Complete(ctx, openaicompat.Request{
		Model: req.Model, SystemPrompt: req.SystemPrompt, UserPrompt: req.UserPrompt,
		MaxTokens: req.MaxTokens, Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Content: resp.Content, PromptTokens: resp.PromptTokens, OutputTokens: resp.OutputTokens}, nil
}

// anthropicAdapter satisfies Provider by forwarding to an
// anthropicprovider.Client.
type anthropicAdapter struct{ client *anthropicprovider.Client }

// NewAnthropicProvider wraps an anthropicprovider.Client as a Provider.
func NewAnthropicProvider(client *anthropicprovider.Client) Provider {
	return &anthropicAdapter{client: client}
}

func (a *anthropicAdapter) Name() string { return a.client.Name() }

func (a *anthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := a.client.Complete(ctx, anthropicprovider.Request{
		Model: req.Model, SystemPrompt: req.SystemPrompt, UserPrompt: req.UserPrompt,
		MaxTokens: req.MaxTokens, Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Content: resp.Content, PromptTokens: resp.PromptTokens, OutputTokens: resp.OutputTokens}, nil
}
