package domain

import "time"

// LLMStage identifies which pipeline step invoked the LLM.
type LLMStage string

const (
	LLMStageSummarizeArticle LLMStage = "summarize_article"
	LLMStageEventSummary     LLMStage = "event_summary"
)

// LLMRun is an append-only journal row for one LLM call, recorded regardless
// of success or failure so cost and failure patterns stay auditable
// (spec.md §6).
type LLMRun struct {
	ID            int64     `db:"id" json:"id"`
	Stage         LLMStage  `db:"stage" json:"stage"`
	ProviderName  string    `db:"provider_name" json:"provider_name"`
	Model         string    `db:"model" json:"model"`
	SubjectType   string    `db:"subject_type" json:"subject_type"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	PromptTokens  int       `db:"prompt_tokens" json:"prompt_tokens,omitempty"`
	OutputTokens  int       `db:"output_tokens" json:"output_tokens,omitempty"`
	DurationMs    int64     `db:"duration_ms" json:"duration_ms"`
	OK            bool      `db:"ok" json:"ok"`
	ErrorMessage  string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
}

// LLMProviderCredential is a stored, envelope-encrypted provider API key
// (internal/secrets performs the seal/open; this type only carries the
// ciphertext and metadata needed to decrypt it).
type LLMProviderCredential struct {
	ProviderName string    `db:"provider_name" json:"provider_name"`
	Ciphertext   []byte    `db:"ciphertext" json:"-"`
	Nonce        []byte    `db:"nonce" json:"-"`
	KeyVersion   int       `db:"key_version" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
