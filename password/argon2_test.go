package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig keeps memory at the floor so the suite stays fast.
func testConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newTestArgon2(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	a, err := NewArgon2(cfg)
	require.NoError(t, err)
	return a
}

func TestArgon2HashFormat(t *testing.T) {
	a := newTestArgon2(t, testConfig())

	hash, err := a.Hash("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)
	assert.NotContains(t, hash, "=$", "salt and key are unpadded")

	again, err := a.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "fresh salt per hash")
}

func TestArgon2Verify(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	hash, err := a.Hash("secret123")
	require.NoError(t, err)

	ok, err := a.Verify("secret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Verify("secret124", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Verify("abc", mustHash(t, a, "abc"))
	require.NoError(t, err)
	assert.True(t, ok, "length policy is not the hasher's concern")
}

func mustHash(t *testing.T, a *Argon2, pw string) string {
	t.Helper()
	h, err := a.Hash(pw)
	require.NoError(t, err)
	return h
}

func TestArgon2VerifyRejectsMalformed(t *testing.T) {
	a := newTestArgon2(t, testConfig())
	good := mustHash(t, a, "secret123")
	fields := strings.Split(good, "$")

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"argon2i":       strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"wrong version": strings.Replace(good, "$v=19$", "$v=18$", 1),
		"missing field": strings.Join(fields[:5], "$"),
		"weak memory":   strings.Replace(good, "m=8192", "m=1024", 1),
		"bad params":    strings.Replace(good, "m=8192,t=1,p=1", "m=8192;t=1", 1),
		"short salt":    strings.Replace(good, fields[4], "c2FsdA", 1),
		"bad key":       strings.Replace(good, fields[5], "!!", 1),
	}
	for name, hash := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify("secret123", hash)
			assert.Error(t, err)
		})
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := newTestArgon2(t, testConfig())
	strongCfg := testConfig()
	strongCfg.Time = 2
	strong := newTestArgon2(t, strongCfg)

	up, err := strong.NeedsUpgrade(mustHash(t, weak, "secret123"))
	require.NoError(t, err)
	assert.True(t, up)

	up, err = strong.NeedsUpgrade(mustHash(t, strong, "secret123"))
	require.NoError(t, err)
	assert.False(t, up)

	longerKey := testConfig()
	longerKey.KeyLength = 64
	up, err = newTestArgon2(t, longerKey).NeedsUpgrade(mustHash(t, weak, "secret123"))
	require.NoError(t, err)
	assert.True(t, up, "key length change")
}

func TestArgon2InputLimits(t *testing.T) {
	a := newTestArgon2(t, testConfig())

	_, err := a.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	_, err = a.Hash(strings.Repeat("a", maxPassBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	_, err = a.Hash(strings.Repeat("b", maxPassBytes))
	assert.NoError(t, err)
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	mutate := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			fn(&cfg)
			_, err := NewArgon2(cfg)
			assert.Error(t, err)
		})
	}
}
