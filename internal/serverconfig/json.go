package serverconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Duration accepts either a Go duration string ("15m") or integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// fileConfig mirrors Config for JSON decoding. Pointer fields distinguish
// "absent" from zero so a file only overrides what it names.
type fileConfig struct {
	Addr        *string `json:"addr"`
	DatabaseDSN *string `json:"database_dsn"`
	RedisAddr   *string `json:"redis_addr"`
	RedisPrefix *string `json:"redis_prefix"`

	JWTSecret  *string   `json:"jwt_secret"`
	AccessTTL  *Duration `json:"access_ttl"`
	RefreshTTL *Duration `json:"refresh_ttl"`
	Issuer     *string   `json:"issuer"`

	ResetURLBase  *string   `json:"reset_url_base"`
	ResetTokenTTL *Duration `json:"reset_token_ttl"`
	ResetStore    *string   `json:"reset_store"`
	PruneInterval *Duration `json:"prune_interval"`

	Notifier     *string `json:"notifier"`
	NotifyStream *string `json:"notify_stream"`

	TrustProxy      *bool     `json:"trust_proxy"`
	LogLevel        *string   `json:"log_level"`
	AuditEnabled    *bool     `json:"audit_enabled"`
	MetricsPath     *string   `json:"metrics_path"`
	ShutdownTimeout *Duration `json:"shutdown_timeout"`
}

func applyJSONFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.RedisPrefix, fc.RedisPrefix)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	setDuration(&cfg.AccessTTL, fc.AccessTTL)
	setDuration(&cfg.RefreshTTL, fc.RefreshTTL)
	setString(&cfg.Issuer, fc.Issuer)
	setString(&cfg.ResetURLBase, fc.ResetURLBase)
	setDuration(&cfg.ResetTokenTTL, fc.ResetTokenTTL)
	setString(&cfg.ResetStore, fc.ResetStore)
	setDuration(&cfg.PruneInterval, fc.PruneInterval)
	setString(&cfg.Notifier, fc.Notifier)
	setString(&cfg.NotifyStream, fc.NotifyStream)
	setBool(&cfg.TrustProxy, fc.TrustProxy)
	setString(&cfg.LogLevel, fc.LogLevel)
	setBool(&cfg.AuditEnabled, fc.AuditEnabled)
	setString(&cfg.MetricsPath, fc.MetricsPath)
	setDuration(&cfg.ShutdownTimeout, fc.ShutdownTimeout)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
