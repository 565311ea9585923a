package llm

import (
	"context"
	"time"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/repository"
)

// Runner issues one routed LLM call and journals the outcome to LLMRun
// regardless of success or failure (spec.md §6: "Records an LLMRun row
// either way").
type Runner struct {
	router *Router
	runs   *repository.LLMRunRepository
}

// NewRunner builds a Runner over the router and the run journal repository.
func NewRunner(router *Router, runs *repository.LLMRunRepository) *Runner {
	return &Runner{router: router, runs: runs}
}

// Run resolves the stage's provider, issues the call, and records an
// LLMRun row for the given subject before returning.
func (r *Runner) Run(ctx context.Context, stage domain.LLMStage, subjectType, subjectID, systemPrompt, userPrompt string) (*Response, error) {
	provider, model, maxTokens, temperature, err := r.router.Resolve(string(stage))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, callErr := provider.Complete(ctx, Request{
		Model: model, SystemPrompt: systemPrompt, UserPrompt: userPrompt,
		MaxTokens: maxTokens, Temperature: temperature,
	})
	duration := time.Since(start)

	run := &domain.LLMRun{
		Stage: stage, ProviderName: provider.Name(), Model: model,
		SubjectType: subjectType, SubjectID: subjectID,
		DurationMs: duration.Milliseconds(), StartedAt: start.UTC(),
	}
	if callErr != nil {
		run.OK = false
		run.ErrorMessage = callErr.Error()
	} else {
		run.OK = true
		run.PromptTokens = resp.PromptTokens
		run.OutputTokens = resp.OutputTokens
	}

	if journalErr := r.runs.InsertRun(ctx, run); journalErr != nil {
		if callErr != nil {
			return nil, callErr
		}
		return nil, apperrors.WrapTransient(journalErr, apperrors.CodeLLMRequestFailed, "journal llm run")
	}

	return resp, callErr
}
