package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

const (
	tokenBytes  = 32
	roomIDBytes = 12
)

// GenerateToken mints an opaque session token.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateRoomID mints a short URL-safe room identifier.
func GenerateRoomID() (string, error) {
	bytes := make([]byte, roomIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
