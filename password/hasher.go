package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when a password exceeds the algorithm's input limit.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnsupportedHash is returned for stored hashes in an unknown format.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
)

// Hasher is the password component used by the engine. New hashes are always
// Argon2id; stored bcrypt hashes are still verified when a legacy verifier is
// configured.
type Hasher struct {
	argon  *Argon2
	legacy *Bcrypt
	dummy  string
}

// NewHasher builds a Hasher around argon. legacy may be nil, in which case
// bcrypt hashes are rejected with ErrUnsupportedHash.
func NewHasher(argon *Argon2, legacy *Bcrypt) (*Hasher, error) {
	if argon == nil {
		return nil, errors.New("argon2 hasher required")
	}

	seed := make([]byte, 24)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	dummy, err := argon.Hash(base64.RawStdEncoding.EncodeToString(seed))
	if err != nil {
		return nil, err
	}

	return &Hasher{argon: argon, legacy: legacy, dummy: dummy}, nil
}

// Hash returns an Argon2id PHC string for password.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify checks password against encodedHash in constant time, dispatching on
// the hash prefix.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, phcPrefix):
		return h.argon.Verify(password, encodedHash)
	case isBcryptHash(encodedHash) && h.legacy != nil:
		return h.legacy.Verify(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

// VerifyDummy burns roughly the same CPU as a real Verify and always reports
// false. Callers use it when the account does not exist so response timing
// does not reveal whether a username is registered.
func (h *Hasher) VerifyDummy(password string) {
	_, _ = h.argon.Verify(password, h.dummy)
}

// NeedsRehash reports whether encodedHash should be replaced by a fresh
// Argon2id hash after a successful verification.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	if isBcryptHash(encodedHash) {
		return true
	}
	upgrade, err := h.argon.NeedsUpgrade(encodedHash)
	return err == nil && upgrade
}
