// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package codec encrypts and decrypts sensitive keystroke payloads.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption, prepended to the ciphertext
//   - Key derived from the caller-supplied passphrase using HKDF-SHA256
//
// The codec is stateless after construction and safe for concurrent use.
// The passphrase is consumed once at startup and never persisted; a wrong
// key or tampered ciphertext fails decryption with ErrDecryptFailed.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// keystrokeKeySalt binds derived keys to this application's keystroke
	// encryption use case.
	keystrokeKeySalt = "introspect-keystroke-payloads"

	// keystrokeKeyInfo is the HKDF info parameter for key derivation.
	keystrokeKeyInfo = "keystroke-encryption-v1"

	// aesKeySize is the AES key size in bytes (256 bits).
	aesKeySize = 32

	// gcmNonceSize is the GCM nonce size in bytes.
	gcmNonceSize = 12
)

var (
	// ErrEmptyKey is returned when an empty passphrase is supplied.
	ErrEmptyKey = errors.New("encryption passphrase cannot be empty")

	// ErrEmptyPlaintext is returned when attempting to encrypt empty text.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")

	// ErrDecryptFailed is returned when the ciphertext was tampered with or
	// the key is wrong.
	ErrDecryptFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")

	// ErrCiphertextTooShort is returned when the ciphertext is shorter than
	// a nonce plus authentication tag. Truncation is a form of tampering,
	// so it wraps ErrDecryptFailed.
	ErrCiphertextTooShort = fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
)

// Codec provides authenticated encryption for keystroke payloads.
type Codec struct {
	aead cipher.AEAD
}

// New creates a Codec from the supplied passphrase. The passphrase is
// stretched to a 256-bit AES key with HKDF-SHA256.
func New(passphrase string) (*Codec, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}

	key, err := deriveKey(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns nonce || ciphertext || tag as a
// single byte slice suitable for BLOB storage.
func (c *Codec) Encrypt(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, ErrEmptyPlaintext
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext and tag to the nonce, producing one buffer.
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt reverses Encrypt. It returns ErrDecryptFailed when the
// authentication tag does not verify, which covers both tampering and a
// wrong passphrase.
func (c *Codec) Decrypt(payload []byte) (string, error) {
	if len(payload) < gcmNonceSize+c.aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := payload[:gcmNonceSize], payload[gcmNonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// deriveKey stretches the passphrase into a 256-bit key using HKDF-SHA256
// with an application-specific salt and info string.
func deriveKey(passphrase string) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(passphrase), []byte(keystrokeKeySalt), []byte(keystrokeKeyInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
