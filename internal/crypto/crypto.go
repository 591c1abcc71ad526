// Package crypto implements the client-side encryption contract for chat
// messages. The relay only ever stores the blobs this package produces; it
// has no key material and cannot be the confidentiality boundary.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keyBytes   = 32
	nonceBytes = 12
)

var (
	// ErrKeyMissing indicates no key was supplied.
	ErrKeyMissing = errors.New("missing encryption key")
	// ErrKeyInvalid indicates the key is not 32 bytes of hex.
	ErrKeyInvalid = errors.New("invalid encryption key format")
	// ErrDecryptionFailed covers malformed blobs, wrong keys and
	// authentication-tag mismatches alike; callers get no detail beyond
	// "this message did not decrypt".
	ErrDecryptionFailed = errors.New("decryption failed")
)

// GenerateKey returns a fresh 256-bit key as 64 hex characters. The key is
// meant to travel in a URL fragment and must never be sent to the server.
func GenerateKey() (string, error) {
	key := make([]byte, keyBytes)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// ValidateKey reports whether keyHex decodes to exactly 32 bytes.
func ValidateKey(keyHex string) error {
	if keyHex == "" {
		return ErrKeyMissing
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != keyBytes {
		return ErrKeyInvalid
	}
	return nil
}

// Encrypt seals plaintext under the hex-encoded key with AES-256-GCM using
// a fresh random nonce, and returns the transport encoding
// hex(nonce) + ":" + hex(ciphertext).
func Encrypt(plaintext, keyHex string) (string, error) {
	gcm, err := newGCM(keyHex)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceBytes)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure, whether a
// malformed encoding, a wrong key, or a tampered ciphertext, yields
// ErrDecryptionFailed so a single bad message never aborts the caller.
func Decrypt(blob, keyHex string) (string, error) {
	gcm, err := newGCM(keyHex)
	if err != nil {
		return "", err
	}

	nonceHex, dataHex, ok := strings.Cut(blob, ":")
	if !ok {
		return "", ErrDecryptionFailed
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != nonceBytes {
		return "", ErrDecryptionFailed
	}

	ciphertext, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

func newGCM(keyHex string) (cipher.AEAD, error) {
	if err := ValidateKey(keyHex); err != nil {
		return nil, err
	}

	key, _ := hex.DecodeString(keyHex)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return gcm, nil
}
