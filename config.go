package goCred

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goCred/jwt"
)

// Config is the complete Engine configuration. It is copied when handed to the
// Builder and never mutated afterwards.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Recovery RecoveryConfig
	Account  AccountConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing. Secret is the single process-wide HS256
// key; it must be at least 32 bytes.
type JWTConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and the password policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool

	// AcceptBcrypt enables verification of legacy bcrypt hashes. They are
	// replaced by Argon2id hashes on the next successful login.
	AcceptBcrypt bool
	BcryptCost   int
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// RecoveryConfig controls the forgot/reset password workflow.
type RecoveryConfig struct {
	// TokenTTL is how long a reset token remains usable after issuance.
	TokenTTL time.Duration
	// ExpiredRetention keeps expired records around this long so a late reset
	// attempt reports ErrResetTokenExpired instead of ErrResetTokenInvalid.
	ExpiredRetention time.Duration
	// ResetURLBase is the link mailed to the user; the token is appended as
	// the "token" query parameter.
	ResetURLBase string
	// SingleActiveToken invalidates earlier tokens for a user when a new one is issued.
	SingleActiveToken bool
	// RestoreOnFailure puts a consumed token back when the password update fails.
	RestoreOnFailure bool

	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxRequests         int
	RequestWindow       time.Duration
	RedisPrefix         string
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls registration.
type AccountConfig struct {
	DefaultRole Role
	Roles       []Role
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls login throttling.
type SecurityConfig struct {
	EnableLoginThrottle bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the secure defaults. JWT.Secret is left empty and
// must be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "goCred",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      128,
			UpgradeOnLogin: true,
			AcceptBcrypt:   false,
			BcryptCost:     12,
		},
		Recovery: RecoveryConfig{
			TokenTTL:            30 * time.Minute,
			ExpiredRetention:    24 * time.Hour,
			ResetURLBase:        "http://localhost:8080/api/v1/auth/reset-password",
			SingleActiveToken:   true,
			RestoreOnFailure:    true,
			EnableEmailThrottle: true,
			EnableIPThrottle:    true,
			MaxRequests:         5,
			RequestWindow:       15 * time.Minute,
			RedisPrefix:         "gcr",
		},
		Account: AccountConfig{
			DefaultRole: RoleUser,
			Roles:       []Role{RoleUser, RoleAdmin},
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			MaxLoginAttempts:    10,
			LoginWindow:         15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.Account.Roles != nil {
		out.Account.Roles = append([]Role(nil), cfg.Account.Roles...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations that are unsafe or internally inconsistent.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretLength)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength || c.Password.MaxLength > 1024 {
		return errors.New("Password MaxLength must be within [MinLength, 1024]")
	}

	// Recovery
	if c.Recovery.TokenTTL <= 0 {
		return errors.New("Recovery TokenTTL must be > 0")
	}
	if c.Recovery.TokenTTL > 72*time.Hour {
		return errors.New("Recovery TokenTTL must be <= 72h")
	}
	if c.Recovery.ExpiredRetention < 0 {
		return errors.New("Recovery ExpiredRetention must be >= 0")
	}
	if c.Recovery.ResetURLBase == "" {
		return errors.New("Recovery ResetURLBase is required")
	}
	if u, err := url.Parse(c.Recovery.ResetURLBase); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Recovery ResetURLBase must be an absolute URL")
	}
	if (c.Recovery.EnableEmailThrottle || c.Recovery.EnableIPThrottle) &&
		(c.Recovery.MaxRequests <= 0 || c.Recovery.RequestWindow <= 0) {
		return errors.New("Recovery throttle requires MaxRequests > 0 and RequestWindow > 0")
	}

	// Account
	if len(c.Account.Roles) == 0 {
		return errors.New("Account Roles must not be empty")
	}
	if !c.roleAllowed(c.Account.DefaultRole) {
		return errors.New("Account DefaultRole must be one of Account Roles")
	}

	// Security
	if c.Security.EnableLoginThrottle && (c.Security.MaxLoginAttempts <= 0 || c.Security.LoginWindow <= 0) {
		return errors.New("login throttle requires MaxLoginAttempts > 0 and LoginWindow > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func (c *Config) roleAllowed(role Role) bool {
	for _, r := range c.Account.Roles {
		if strings.EqualFold(string(r), string(role)) {
			return true
		}
	}
	return false
}

// canonicalRole maps role onto the configured spelling, so "user" registers as USER.
func (c *Config) canonicalRole(role Role) (Role, bool) {
	for _, r := range c.Account.Roles {
		if strings.EqualFold(string(r), string(role)) {
			return r, true
		}
	}
	return "", false
}
