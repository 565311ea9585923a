// Package llm routes summarization requests to a configured provider,
// journals every call, and normalizes the OpenAI-compatible chat-completion
// contract spec.md §6 specifies across a native SDK provider and a
// hand-rolled HTTP one.
package llm

import "context"

// Request is the normalized chat-completion input every Provider accepts.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response is the normalized chat-completion output every Provider returns.
type Response struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Provider is one concrete LLM backend. Implementations must translate
// Request/Response without leaking their wire format to callers.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}
