// Package crypto seals provider access tokens at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrConfiguration is the parent of every key problem.
	ErrConfiguration = errors.New("encryption is not configured correctly")
	ErrNotConfigured = fmt.Errorf("%w: ENCRYPTION_KEY is not set", ErrConfiguration)
	ErrInvalidKey    = fmt.Errorf("%w: ENCRYPTION_KEY must be base64 encoding at least 32 bytes", ErrConfiguration)

	// ErrIntegrity covers malformed blobs and failed authentication.
	ErrIntegrity = errors.New("ciphertext failed integrity check")
)

// Encryptor encrypts and decrypts short secrets.
// Blob layout: base64(nonce[12] || ciphertext || tag[16]).
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an Encryptor from a base64 key. Only the first 32
// decoded bytes are used.
func NewEncryptor(key string) (*Encryptor, error) {
	if key == "" {
		return nil, ErrNotConfigured
	}

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) < keySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(raw[:keySize])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// IsConfigured reports whether key would produce a working Encryptor.
func IsConfigured(key string) bool {
	_, err := NewEncryptor(key)
	return err == nil
}

// GenerateKey returns a fresh random key in the format NewEncryptor expects.
func GenerateKey() (string, error) {
	raw := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Encrypt seals plaintext under a fresh random nonce. The empty string is
// encrypted like any other value.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if e == nil || e.aead == nil {
		return "", ErrNotConfigured
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext||tag to the nonce slice.
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt.
func (e *Encryptor) Decrypt(blob string) (string, error) {
	if e == nil || e.aead == nil {
		return "", ErrNotConfigured
	}

	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", ErrIntegrity)
	}
	if len(data) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: blob too short", ErrIntegrity)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrIntegrity)
	}

	return string(plaintext), nil
}

// Unavailable stands in for an Encryptor when the key is missing or
// invalid. Every call fails with Err, so link and sync report a
// configuration error instead of the process refusing to start.
type Unavailable struct {
	Err error
}

func (u Unavailable) Encrypt(string) (string, error) { return "", u.Err }
func (u Unavailable) Decrypt(string) (string, error) { return "", u.Err }
