// Package secrets implements envelope encryption for provider credentials
// stored in domain.LLMProviderCredential rows (spec.md §6: "LLM master
// encryption key ... used to wrap stored provider API keys via AES-GCM with
// a per-record nonce").
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keyVersion1 = 1
	subkeyLen   = 32
	hkdfInfo    = "sempervigil-llm-credential-v1"
)

// Sealer derives a fresh per-record subkey from the master key via HKDF and
// seals/opens provider credentials with AES-GCM. A new Sealer is cheap to
// construct; it holds no mutable state beyond the master key bytes.
type Sealer struct {
	masterKey []byte
}

// NewSealer builds a Sealer over the raw master key bytes (decoded from the
// hex-encoded SECURITY_LLM_MASTER_KEY configuration value).
func NewSealer(masterKey []byte) *Sealer {
	return &Sealer{masterKey: masterKey}
}

// Sealed is the output of Seal: ciphertext, the nonce used, and the key
// version, matching domain.LLMProviderCredential's stored columns.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	KeyVersion int
}

// Seal encrypts plaintext (typically a raw provider API key) under a subkey
// derived from the master key and a freshly generated random nonce.
func (s *Sealer) Seal(plaintext []byte) (*Sealed, error) {
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := s.gcmForNonce(nonce)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return &Sealed{Ciphertext: ciphertext, Nonce: nonce, KeyVersion: keyVersion1}, nil
}

// Open decrypts a previously sealed credential. keyVersion is accepted for
// forward compatibility with a future key-rotation scheme; only version 1
// is currently understood.
func (s *Sealer) Open(ciphertext, nonce []byte, keyVersion int) ([]byte, error) {
	if keyVersion != keyVersion1 {
		return nil, fmt.Errorf("unsupported credential key version %d", keyVersion)
	}
	gcm, err := s.gcmForNonce(nonce)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed credential: %w", err)
	}
	return plaintext, nil
}

func (s *Sealer) gcmForNonce(nonce []byte) (cipher.AEAD, error) {
	subkey, err := s.deriveSubkey(nonce)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(subkey)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

// deriveSubkey expands the master key into a record-specific AES-256 key,
// salted on the record's own nonce so no two sealed records share a subkey.
func (s *Sealer) deriveSubkey(nonce []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, s.masterKey, nonce, []byte(hkdfInfo))
	out := make([]byte, subkeyLen)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, fmt.Errorf("derive subkey: %w", err)
	}
	return out, nil
}
