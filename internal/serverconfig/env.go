package serverconfig

import (
	"fmt"
	"strconv"
	"time"
)

const envPrefix = "GOCRED_"

func applyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}

	strs := map[string]*string{
		"ADDR":          &cfg.Addr,
		"DATABASE_DSN":  &cfg.DatabaseDSN,
		"REDIS_ADDR":    &cfg.RedisAddr,
		"REDIS_PREFIX":  &cfg.RedisPrefix,
		"JWT_SECRET":    &cfg.JWTSecret,
		"ISSUER":        &cfg.Issuer,
		"RESET_URL":     &cfg.ResetURLBase,
		"RESET_STORE":   &cfg.ResetStore,
		"NOTIFIER":      &cfg.Notifier,
		"NOTIFY_STREAM": &cfg.NotifyStream,
		"LOG_LEVEL":     &cfg.LogLevel,
		"METRICS_PATH":  &cfg.MetricsPath,
	}
	for name, dst := range strs {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TTL":       &cfg.AccessTTL,
		"REFRESH_TTL":      &cfg.RefreshTTL,
		"RESET_TTL":        &cfg.ResetTokenTTL,
		"PRUNE_INTERVAL":   &cfg.PruneInterval,
		"SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	}
	for name, dst := range durations {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	bools := map[string]*bool{
		"TRUST_PROXY": &cfg.TrustProxy,
		"AUDIT":       &cfg.AuditEnabled,
	}
	for name, dst := range bools {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = b
	}

	return nil
}
