package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// LLMRunRepository persists the append-only LLMRun journal and the
// envelope-encrypted LLMProviderCredential rows.
type LLMRunRepository struct {
	db *sqlx.DB
}

// InsertRun appends an LLMRun journal row, win or lose, so cost and failure
// patterns stay auditable (spec.md §6).
func (r *LLMRunRepository) InsertRun(ctx context.Context, run *domain.LLMRun) error {
	const q = `
INSERT INTO llm_runs (
	stage, provider_name, model, subject_type, subject_id,
	prompt_tokens, output_tokens, duration_ms, ok, error_message, started_at
) VALUES (
	:stage, :provider_name, :model, :subject_type, :subject_id,
	:prompt_tokens, :output_tokens, :duration_ms, :ok, :error_message, :started_at
)`
	_, err := r.db.NamedExecContext(ctx, q, run)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeLLMRequestFailed, "insert llm run")
	}
	return nil
}

// RecentRunsForSubject lists the most recent LLM runs for a given
// subject_type/subject_id pair, newest first.
func (r *LLMRunRepository) RecentRunsForSubject(ctx context.Context, subjectType, subjectID string, limit int) ([]domain.LLMRun, error) {
	const q = `
SELECT id, stage, provider_name, model, subject_type, subject_id,
       prompt_tokens, output_tokens, duration_ms, ok, error_message, started_at
FROM llm_runs WHERE subject_type = $1 AND subject_id = $2 ORDER BY started_at DESC LIMIT $3`
	var out []domain.LLMRun
	if err := r.db.SelectContext(ctx, &out, q, subjectType, subjectID, limit); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeLLMRequestFailed, "recent llm runs")
	}
	return out, nil
}

// GetCredential loads a provider's sealed credential, or NotFound if the
// provider has never had a key installed.
func (r *LLMRunRepository) GetCredential(ctx context.Context, providerName string) (*domain.LLMProviderCredential, error) {
	var c domain.LLMProviderCredential
	const q = `SELECT provider_name, ciphertext, nonce, key_version, created_at, updated_at FROM llm_provider_credentials WHERE provider_name = $1`
	if err := r.db.GetContext(ctx, &c, q, providerName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeLLMProviderNotConfigured, "no credential installed for provider: "+providerName)
		}
		return nil, apperrors.WrapTransient(err, apperrors.CodeLLMProviderNotConfigured, "get llm credential")
	}
	return &c, nil
}

// UpsertCredential installs or rotates a provider's sealed credential.
func (r *LLMRunRepository) UpsertCredential(ctx context.Context, c *domain.LLMProviderCredential) error {
	const q = `
INSERT INTO llm_provider_credentials (provider_name, ciphertext, nonce, key_version, created_at, updated_at)
VALUES (:provider_name, :ciphertext, :nonce, :key_version, now(), now())
ON CONFLICT (provider_name) DO UPDATE SET
	ciphertext = EXCLUDED.ciphertext,
	nonce = EXCLUDED.nonce,
	key_version = EXCLUDED.key_version,
	updated_at = now()`
	_, err := r.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeLLMProviderNotConfigured, "upsert llm credential")
	}
	return nil
}

// DeleteCredential removes a provider's sealed credential.
func (r *LLMRunRepository) DeleteCredential(ctx context.Context, providerName string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM llm_provider_credentials WHERE provider_name = $1`, providerName)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeLLMProviderNotConfigured, "delete llm credential")
	}
	return nil
}
