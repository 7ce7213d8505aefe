package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Encryptor seals free-text patient notes before they reach storage.
// AES-256-GCM with a random nonce prepended to the ciphertext, base64
// encoded so the result fits a plain text column.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32-byte AES-256 key
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt seals a plaintext note. Empty input stays empty so absent
// notes round-trip as absent.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Tampered or truncated
// input fails authentication and returns an error.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

// EncryptSensitiveFields seals every value of a field map, for callers
// that stage several note fields at once
func (e *Encryptor) EncryptSensitiveFields(data map[string]string) (map[string]string, error) {
	encrypted := make(map[string]string, len(data))
	for field, value := range data {
		sealed, err := e.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt field %s: %w", field, err)
		}
		encrypted[field] = sealed
	}

	return encrypted, nil
}

// DecryptSensitiveFields opens every value of a field map
func (e *Encryptor) DecryptSensitiveFields(data map[string]string) (map[string]string, error) {
	decrypted := make(map[string]string, len(data))
	for field, value := range data {
		opened, err := e.Decrypt(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt field %s: %w", field, err)
		}
		decrypted[field] = opened
	}

	return decrypted, nil
}
