package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const resetTokenSize = 32

// ErrResetTokenFormat is returned by ResetTokenKey for strings that could not
// have been produced by NewResetToken.
var ErrResetTokenFormat = errors.New("invalid reset token format")

// NewResetToken returns an unguessable, URL-safe reset token
// (32 random bytes, base64url without padding).
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ResetTokenKey derives the storage key for a reset token. Stores only ever
// see this digest, never the token that was mailed to the user.
func ResetTokenKey(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrResetTokenFormat
	}
	if len(raw) != resetTokenSize {
		return "", ErrResetTokenFormat
	}
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
