package secrets

import (
	"context"
	"encoding/hex"
	"fmt"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/repository"
)

// credentialRepository is the subset of repository.LLMRunRepository the
// credential store needs, kept narrow so it is trivially mockable in tests.
type credentialRepository interface {
	GetCredential(ctx context.Context, providerName string) (*domain.LLMProviderCredential, error)
	UpsertCredential(ctx context.Context, c *domain.LLMProviderCredential) error
	DeleteCredential(ctx context.Context, providerName string) error
}

// CredentialStore reads and writes plaintext provider API keys, sealing and
// opening them transparently around the repository's ciphertext columns.
type CredentialStore struct {
	sealer *Sealer
	repo   credentialRepository
}

// NewCredentialStore builds a CredentialStore over the hex-encoded master
// key and the LLM run repository.
func NewCredentialStore(masterKeyHex string, repo *repository.LLMRunRepository) (*CredentialStore, error) {
	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode llm master key: %w", err)
	}
	return &CredentialStore{sealer: NewSealer(masterKey), repo: repo}, nil
}

// Get returns the plaintext API key for a provider, or a NotFound AppError
// if no credential has been installed.
func (s *CredentialStore) Get(ctx context.Context, providerName string) (string, error) {
	cred, err := s.repo.GetCredential(ctx, providerName)
	if err != nil {
		return "", err
	}
	plaintext, err := s.sealer.Open(cred.Ciphertext, cred.Nonce, cred.KeyVersion)
	if err != nil {
		return "", fmt.Errorf("open credential for %s: %w", providerName, err)
	}
	return string(plaintext), nil
}

// Put seals and installs (or rotates) a provider's plaintext API key.
func (s *CredentialStore) Put(ctx context.Context, providerName, apiKey string) error {
	sealed, err := s.sealer.Seal([]byte(apiKey))
	if err != nil {
		return fmt.Errorf("seal credential for %s: %w", providerName, err)
	}
	return s.repo.UpsertCredential(ctx, &domain.LLMProviderCredential{
		ProviderName: providerName,
		Ciphertext:   sealed.Ciphertext,
		Nonce:        sealed.Nonce,
		KeyVersion:   sealed.KeyVersion,
	})
}

// Delete removes a provider's installed credential.
func (s *CredentialStore) Delete(ctx context.Context, providerName string) error {
	return s.repo.DeleteCredential(ctx, providerName)
}
