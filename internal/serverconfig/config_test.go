package serverconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 15*time.Minute, c.AccessTTL)
	assert.Equal(t, 30*time.Minute, c.ResetTokenTTL)
	assert.Equal(t, "redis", c.ResetStore)
	assert.Equal(t, "log", c.Notifier)
	assert.Empty(t, c.JWTSecret)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load(nil, envMap(nil))
	require.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gocred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"addr": ":9000",
		"jwt_secret": "from-file",
		"access_ttl": "5m",
		"refresh_ttl": 7200000000000,
		"notifier": "stream"
	}`), 0o600))

	env := envMap(map[string]string{
		"GOCRED_JWT_SECRET": "from-env",
		"GOCRED_RESET_TTL":  "45m",
		"GOCRED_AUDIT":      "true",
	})

	cfg, err := Load([]string{"-c", path, "-a", ":9100"}, env)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr, "flag beats file")
	assert.Equal(t, "from-env", cfg.JWTSecret, "env beats file")
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 2*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 45*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "stream", cfg.Notifier)
	assert.True(t, cfg.AuditEnabled)
	assert.Equal(t, "gcr", cfg.RedisPrefix, "untouched fields keep defaults")
}

func TestLoadConfigEqualsForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"jwt_secret":"s"}`), 0o600))

	cfg, err := Load([]string{"--config=" + path}, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "s", cfg.JWTSecret)
}

func TestLoadBothNotifiers(t *testing.T) {
	cfg, err := Load([]string{"-notifier", "both"}, envMap(map[string]string{"GOCRED_JWT_SECRET": "s"}))
	require.NoError(t, err)
	assert.Equal(t, "both", cfg.Notifier)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad env duration", nil, map[string]string{"GOCRED_JWT_SECRET": "s", "GOCRED_ACCESS_TTL": "soon"}},
		{"bad env bool", nil, map[string]string{"GOCRED_JWT_SECRET": "s", "GOCRED_TRUST_PROXY": "maybe"}},
		{"unknown flag", []string{"-nope"}, map[string]string{"GOCRED_JWT_SECRET": "s"}},
		{"unknown notifier", []string{"-notifier", "smtp"}, map[string]string{"GOCRED_JWT_SECRET": "s"}},
		{"postgres reset store without dsn", []string{"-reset-store", "postgres"}, map[string]string{"GOCRED_JWT_SECRET": "s"}},
		{"missing file", []string{"-c", "/does/not/exist.json"}, map[string]string{"GOCRED_JWT_SECRET": "s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args, envMap(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1h30m"`)))
	assert.Equal(t, 90*time.Minute, d.Duration)
	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration)
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
