package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "ignite-credstore-v1"

// Sealer encrypts records with XChaCha20-Poly1305 under a key derived from
// a caller-supplied secret.
type Sealer struct {
	key []byte
}

type sealedRecord struct {
	Version int    `json:"v"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// NewSealer derives a 256-bit key from secret with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret cannot be empty")
	}

	h := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext into a self-describing JSON envelope.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return json.Marshal(sealedRecord{
		Version: 1,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plaintext, []byte(sealerInfo)),
	})
}

// Open decrypts an envelope produced by Seal.
func (s *Sealer) Open(envelope []byte) ([]byte, error) {
	var rec sealedRecord
	if err := json.Unmarshal(envelope, &rec); err != nil {
		return nil, fmt.Errorf("malformed sealed record: %w", err)
	}
	if rec.Version != 1 {
		return nil, fmt.Errorf("unsupported sealed record version %d", rec.Version)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(rec.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(rec.Nonce))
	}

	plaintext, err := aead.Open(nil, rec.Nonce, rec.Data, []byte(sealerInfo))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt record: %w", err)
	}
	return plaintext, nil
}
