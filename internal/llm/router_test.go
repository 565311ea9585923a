package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	resp *Response
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestRouter_ResolveReturnsBoundProfile(t *testing.T) {
	router := NewRouter(map[string]string{"summarize_article": "cheap"})
	provider := &fakeProvider{name: "openai-compat"}
	router.AddProfile("cheap", provider, "gpt-4o-mini", 512, 0.2)

	got, model, maxTokens, temperature, err := router.Resolve("summarize_article")
	require.NoError(t, err)
	assert.Same(t, Provider(provider), got)
	assert.Equal(t, "gpt-4o-mini", model)
	assert.Equal(t, 512, maxTokens)
	assert.Equal(t, 0.2, temperature)
}

func TestRouter_ResolveFailsForUnroutedStage(t *testing.T) {
	router := NewRouter(map[string]string{})
	_, _, _, _, err := router.Resolve("event_summary")
	assert.Error(t, err)
}

func TestRouter_ResolveFailsWhenProfileNeverRegistered(t *testing.T) {
	router := NewRouter(map[string]string{"event_summary": "premium"})
	_, _, _, _, err := router.Resolve("event_summary")
	assert.Error(t, err)
}
