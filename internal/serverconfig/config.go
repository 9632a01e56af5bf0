// Package serverconfig loads gocred-server settings. Sources apply in order:
// defaults, an optional JSON file (-c / -config), GOCRED_* environment
// variables, then command-line flags.
package serverconfig

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

// Config holds the process settings. Engine tuning not listed here keeps
// goCred.DefaultConfig values.
type Config struct {
	Addr        string
	DatabaseDSN string
	// RedisAddr empty means an embedded in-process Redis, for development only.
	RedisAddr   string
	RedisPrefix string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string

	ResetURLBase  string
	ResetTokenTTL time.Duration
	// ResetStore is "redis" or "postgres".
	ResetStore    string
	PruneInterval time.Duration

	// Notifier is "log", "stream" or "both".
	Notifier     string
	NotifyStream string

	TrustProxy      bool
	LogLevel        string
	AuditEnabled    bool
	MetricsPath     string
	ShutdownTimeout time.Duration
}

// LoadDefaults populates development defaults. JWTSecret has no default.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.RedisPrefix = "gcr"
	c.AccessTTL = 15 * time.Minute
	c.RefreshTTL = 7 * 24 * time.Hour
	c.Issuer = "goCred"
	c.ResetURLBase = "http://localhost:8080/api/v1/auth/reset-password"
	c.ResetTokenTTL = 30 * time.Minute
	c.ResetStore = "redis"
	c.PruneInterval = time.Hour
	c.Notifier = "log"
	c.NotifyStream = "gocred:recovery"
	c.LogLevel = "info"
	c.MetricsPath = "/metrics"
	c.ShutdownTimeout = 10 * time.Second
}

// Load builds a Config from args (without the program name) and getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := configPath(args); path != "" {
		if err := applyJSONFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required (GOCRED_JWT_SECRET or -jwt-secret)")
	}
	switch c.ResetStore {
	case "redis":
	case "postgres":
		if c.DatabaseDSN == "" {
			return errors.New("reset store postgres requires a database dsn")
		}
	default:
		return fmt.Errorf("unknown reset store %q", c.ResetStore)
	}
	switch c.Notifier {
	case "log", "stream", "both":
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifier)
	}
	return nil
}

func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("gocred-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ignored string
	fs.StringVar(&ignored, "c", "", "path to JSON config file")
	fs.StringVar(&ignored, "config", "", "path to JSON config file")

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN; empty keeps users in memory")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address; empty starts an embedded instance")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "Redis key prefix")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HS256 signing secret (>= 32 bytes)")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTTL, "refresh-ttl", cfg.RefreshTTL, "refresh token lifetime")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer")
	fs.StringVar(&cfg.ResetURLBase, "reset-url", cfg.ResetURLBase, "base URL of the password reset link")
	fs.DurationVar(&cfg.ResetTokenTTL, "reset-ttl", cfg.ResetTokenTTL, "reset token lifetime")
	fs.StringVar(&cfg.ResetStore, "reset-store", cfg.ResetStore, "reset token store: redis or postgres")
	fs.DurationVar(&cfg.PruneInterval, "prune-interval", cfg.PruneInterval, "expired reset token pruning interval (postgres)")
	fs.StringVar(&cfg.Notifier, "notifier", cfg.Notifier, "recovery notifier: log, stream or both")
	fs.StringVar(&cfg.NotifyStream, "notify-stream", cfg.NotifyStream, "Redis stream for the stream notifier")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "take the client IP from X-Forwarded-For")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.AuditEnabled, "audit", cfg.AuditEnabled, "emit audit events to the log")
	fs.StringVar(&cfg.MetricsPath, "metrics-path", cfg.MetricsPath, "Prometheus endpoint path; empty disables")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

// configPath finds -c / -config in args without parsing the other flags.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := strings.TrimPrefix(args[i], "-")
		arg = strings.TrimPrefix(arg, "-")
		name, value, hasValue := strings.Cut(arg, "=")
		if name != "c" && name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
