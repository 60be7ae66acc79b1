// Package vault opens the AES-256-GCM blobs protecting stored gift card
// secrets. Ciphertext, nonce and auth tag are stored as separate hex fields
// on the gift card row; tampering with any of them fails authentication.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrDecryptFailed = errors.New("vault: decryption failed")

type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a hex-encoded 32-byte key.
func New(keyHex string) (*Vault, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("vault: decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Decrypt opens one stored blob. All inputs are hex encoded.
func (v *Vault) Decrypt(ciphertext, iv, tag string) (string, error) {
	ct, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecryptFailed)
	}
	nonce, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv encoding", ErrDecryptFailed)
	}
	tagBytes, err := hex.DecodeString(tag)
	if err != nil {
		return "", fmt.Errorf("%w: bad tag encoding", ErrDecryptFailed)
	}
	if len(nonce) != v.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce size", ErrDecryptFailed)
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ct, tagBytes...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// Encrypt seals a plaintext under a fresh nonce. Used by card ingestion and
// tests; returns hex-encoded ciphertext, nonce and tag.
func (v *Vault) Encrypt(plaintext string) (ciphertext, iv, tag string, err error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagSize := v.aead.Overhead()
	ct := sealed[:len(sealed)-tagSize]
	tagBytes := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(ct), hex.EncodeToString(nonce), hex.EncodeToString(tagBytes), nil
}
