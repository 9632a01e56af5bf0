package goCred

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goCred/internal/audit"
	"github.com/MrEthical07/goCred/internal/limiters"
	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	resets    ResetTokenStore
	notifier  Notifier
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client used by the default reset token store
// and by the login and recovery limiters. Without it, throttling is disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the credential store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithResetTokenStore overrides the Redis-backed reset token store.
func (b *Builder) WithResetTokenStore(store ResetTokenStore) *Builder {
	b.resets = store
	return b
}

// WithNotifier sets the recovery link delivery channel. Required.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is true.
// The default sink logs through the configured slog logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for best-effort failures. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuance and reset expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if b.resets == nil && b.redis == nil {
		return nil, errors.New("reset token store or redis client required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		resets:   b.resets,
		notifier: b.notifier,
		logger:   logger,
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
	}

	if engine.resets == nil {
		engine.resets = newRedisResetStore(b.redis, cfg.Recovery, now)
	}

	// -------- LIMITERS --------
	if b.redis != nil {
		engine.loginLimiter = limiters.NewLoginLimiter(b.redis, limiters.LoginConfig{
			Enabled:     cfg.Security.EnableLoginThrottle,
			MaxAttempts: cfg.Security.MaxLoginAttempts,
			Window:      cfg.Security.LoginWindow,
			Prefix:      cfg.Recovery.RedisPrefix,
		})
		engine.recoveryLimiter = limiters.NewRecoveryLimiter(b.redis, limiters.RecoveryConfig{
			EnableEmailThrottle: cfg.Recovery.EnableEmailThrottle,
			EnableIPThrottle:    cfg.Recovery.EnableIPThrottle,
			MaxAttempts:         cfg.Recovery.MaxRequests,
			Window:              cfg.Recovery.RequestWindow,
			Prefix:              cfg.Recovery.RedisPrefix,
		})
	} else if cfg.Security.EnableLoginThrottle || cfg.Recovery.EnableEmailThrottle || cfg.Recovery.EnableIPThrottle {
		logger.Warn("goCred: throttling configured but no redis client; limiters disabled")
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = audit.NewSlogSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	// -------- PASSWORD HASHER --------
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	var legacy *password.Bcrypt
	if cfg.Password.AcceptBcrypt {
		legacy, err = password.NewBcrypt(cfg.Password.BcryptCost)
		if err != nil {
			return nil, err
		}
	}
	hasher, err := password.NewHasher(argon, legacy)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:     cloneBytes(cfg.JWT.Secret),
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		KeyID:      cfg.JWT.KeyID,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
