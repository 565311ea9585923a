package llm

import (
	"fmt"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// profileBinding is a resolved (provider, model, limits) triple for one
// configured profile.
type profileBinding struct {
	provider    Provider
	model       string
	maxTokens   int
	temperature float64
}

// Router resolves a pipeline stage to the provider/model it is configured
// to use, following config.LLMConfig's stage_routing -> profiles indirection
// so an operator can repoint a stage at a different provider without a code
// change.
type Router struct {
	profiles     map[string]profileBinding
	stageRouting map[string]string
}

// NewRouter builds an empty Router. stageRouting maps a stage name (as
// named in config.LLMConfig.StageRouting) to a profile key; profiles are
// registered afterward via AddProfile.
func NewRouter(stageRouting map[string]string) *Router {
	return &Router{profiles: make(map[string]profileBinding), stageRouting: stageRouting}
}

// AddProfile registers a resolved profile under key.
func (r *Router) AddProfile(key string, provider Provider, model string, maxTokens int, temperature float64) {
	if r.profiles == nil {
		r.profiles = make(map[string]profileBinding)
	}
	r.profiles[key] = profileBinding{provider: provider, model: model, maxTokens: maxTokens, temperature: temperature}
}

// Resolve looks up the profile routed to stage and returns its provider and
// default model/limits.
func (r *Router) Resolve(stage string) (Provider, string, int, float64, error) {
	profileKey, ok := r.stageRouting[stage]
	if !ok {
		return nil, "", 0, 0, apperrors.Permanent(apperrors.CodeLLMProviderNotConfigured, fmt.Sprintf("no profile routed for stage %q", stage))
	}
	binding, ok := r.profiles[profileKey]
	if !ok {
		return nil, "", 0, 0, apperrors.Permanent(apperrors.CodeLLMProviderNotConfigured, fmt.Sprintf("stage %q routes to unknown profile %q", stage, profileKey))
	}
	return binding.provider, binding.model, binding.maxTokens, binding.temperature, nil
}
