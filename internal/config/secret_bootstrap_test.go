package config

import (
	"testing"
)

func TestEnsureSecrets_GeneratesMissingValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if cfg.Security.AdminJWTSecret == "" {
		t.Fatal("admin jwt secret should be auto-generated")
	}
	if cfg.Security.LLMMasterKey == "" {
		t.Fatal("llm master key should be auto-generated")
	}
	// 32 random bytes hex-encoded -> 64 chars.
	if len(cfg.Security.AdminJWTSecret) != 64 {
		t.Fatalf("admin jwt secret length = %d, want 64", len(cfg.Security.AdminJWTSecret))
	}
	if len(cfg.Security.LLMMasterKey) != 64 {
		t.Fatalf("llm master key length = %d, want 64", len(cfg.Security.LLMMasterKey))
	}
}

func TestEnsureSecrets_PreservesProvidedValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Security: SecurityConfig{
			AdminJWTSecret: "abcdefghijklmnopqrstuvwxyzABCDEF123456", // 38 chars
			LLMMasterKey:   "keep-existing-llm-master-key",
		},
	}

	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if got := cfg.Security.AdminJWTSecret; got != "abcdefghijklmnopqrstuvwxyzABCDEF123456" {
		t.Fatalf("admin jwt secret changed unexpectedly: %q", got)
	}
	if got := cfg.Security.LLMMasterKey; got != "keep-existing-llm-master-key" {
		t.Fatalf("llm master key changed unexpectedly: %q", got)
	}
}

func TestConfigValidate_RejectsShortAdminJWTSecret(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Security: SecurityConfig{
			AdminJWTSecret: "short-secret",
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for short admin jwt secret, got nil")
	}
}
