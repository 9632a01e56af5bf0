package goCred

import (
	"log/slog"
	"time"

	"github.com/MrEthical07/goCred/internal/audit"
	internalflows "github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/internal/limiters"
	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/password"
)

// Engine is the credential lifecycle engine. It is built once by Builder and
// is safe for concurrent use; no field changes after Build.
type Engine struct {
	config   Config
	users    UserStore
	resets   ResetTokenStore
	notifier Notifier

	jwtManager      *jwt.Manager
	hasher          *password.Hasher
	loginLimiter    *limiters.LoginLimiter
	recoveryLimiter *limiters.RecoveryLimiter

	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	flows internalflows.Deps
}

// Close flushes the audit dispatcher. Stores and clients passed to the
// Builder are owned by the caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

func (e *Engine) checkPolicy(pw string) error {
	if len(pw) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	if len(pw) > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}
	return nil
}

func (e *Engine) issueTokenPair(username, role string) (internalflows.TokenPair, error) {
	access, err := e.jwtManager.CreateAccess(username, role, nil)
	if err != nil {
		return internalflows.TokenPair{}, err
	}
	refresh, err := e.jwtManager.CreateRefresh(username, role, nil)
	if err != nil {
		return internalflows.TokenPair{}, err
	}
	return internalflows.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func toTokenPair(p internalflows.TokenPair) TokenPair {
	return TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
