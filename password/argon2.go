package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	maxPassBytes          = 1024
	phcPrefix             = "$argon2id$"
)

var errMalformedPHC = errors.New("malformed argon2id hash")

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}

// Argon2 hashes and verifies passwords with Argon2id. Hashes are stored in
// the PHC string format with unpadded base64, as produced by the reference
// argon2 CLI:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg against the package minimums.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// phc is a decoded Argon2id hash.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
}

func (p phc) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version, p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key))
}

func decodePHC(encoded string) (phc, error) {
	if !strings.HasPrefix(encoded, phcPrefix) {
		return phc{}, ErrUnsupportedHash
	}
	fields := strings.Split(strings.TrimPrefix(encoded, phcPrefix), "$")
	if len(fields) != 4 {
		return phc{}, errMalformedPHC
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return phc{}, errMalformedPHC
	}
	if version != argon2.Version {
		return phc{}, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var p phc
	if n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil || n != 3 {
		return phc{}, errMalformedPHC
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || p.parallelism < minParallelism {
		return phc{}, fmt.Errorf("%w: parameters below minimum", errMalformedPHC)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil || len(p.salt) < int(minSaltLength) {
		return phc{}, fmt.Errorf("%w: salt", errMalformedPHC)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil || len(p.key) == 0 {
		return phc{}, fmt.Errorf("%w: key", errMalformedPHC)
	}
	return p, nil
}

// Hash derives a key for password under a fresh random salt. Password bytes
// are used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPassBytes {
		return "", ErrPasswordTooLong
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
		key:         make([]byte, a.config.KeyLength),
	}
	if _, err := io.ReadFull(rand.Reader, p.salt); err != nil {
		return "", err
	}
	p.key = p.derive(password)
	return p.String(), nil
}

// Verify re-derives the key with the parameters stored in encoded. A
// malformed hash is an error; a mismatch is (false, nil).
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration, or with a different key length.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	c := a.config
	return c.Memory > p.memory ||
		c.Time > p.time ||
		c.Parallelism > p.parallelism ||
		int(c.KeyLength) != len(p.key), nil
}
