package flows

import (
	"context"
	"errors"
	"strings"
)

// AuthenticateMetrics carries metric IDs needed by the login flow.
type AuthenticateMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	PasswordUpgraded int
}

// AuthenticateEvents carries audit event names used by the login flow.
type AuthenticateEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// AuthenticateErrors carries host-level sentinel errors used by the login flow.
type AuthenticateErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginRateLimited   error
}

// AuthenticateDeps captures login dependencies.
type AuthenticateDeps struct {
	UpgradeOnLogin bool

	CheckLoginRate   func(context.Context, string) error
	RecordLoginFail  func(context.Context, string) error
	ResetLoginRate   func(context.Context, string) error
	MapLimiterError  func(error) error
	IsUserNotFound   func(error) bool
	MapStoreError    func(error) error
	GetUserByName    func(context.Context, string) (UserRecord, error)
	VerifyPassword   func(password, hash string) (bool, error)
	VerifyDummy      func(string)
	NeedsRehash      func(string) bool
	HashPassword     func(string) (string, error)
	RehashPassword   func(context.Context, UserRecord, string) error
	IssueTokenPair   func(username, role string) (TokenPair, error)

	Warn      func(string, ...any)
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics AuthenticateMetrics
	Events  AuthenticateEvents
	Errors  AuthenticateErrors
}

// RunAuthenticate verifies a username and password and issues a token pair.
// Unknown users and wrong passwords return the same error after comparable work.
func RunAuthenticate(ctx context.Context, username, password string, deps AuthenticateDeps) (TokenPair, error) {
	normalizeAuthenticateDeps(&deps)

	if deps.GetUserByName == nil || deps.VerifyPassword == nil || deps.IssueTokenPair == nil {
		return TokenPair{}, deps.Errors.EngineNotReady
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		deps.VerifyDummy(password)
		return TokenPair{}, deps.loginFailed(ctx, "", username, "empty_input")
	}

	if err := deps.CheckLoginRate(ctx, username); err != nil {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.LoginRateLimited) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", username, mapped, nil)
		}
		return TokenPair{}, mapped
	}

	user, err := deps.GetUserByName(ctx, username)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return TokenPair{}, err
		}
		if !deps.IsUserNotFound(err) {
			return TokenPair{}, deps.MapStoreError(err)
		}
		deps.VerifyDummy(password)
		deps.recordFailure(ctx, username)
		return TokenPair{}, deps.loginFailed(ctx, "", username, "unknown_user")
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Warn("goCred: stored password hash unreadable", "user_id", user.UserID, "error", err)
	}
	if !ok {
		deps.recordFailure(ctx, username)
		return TokenPair{}, deps.loginFailed(ctx, user.UserID, username, "password_mismatch")
	}

	if err := deps.ResetLoginRate(ctx, username); err != nil {
		deps.Warn("goCred: login limiter reset failed", "error", err)
	}

	if deps.UpgradeOnLogin && deps.NeedsRehash(user.PasswordHash) {
		deps.upgradeHash(ctx, user, password)
	}

	pair, err := deps.IssueTokenPair(user.Username, user.Role)
	if err != nil {
		return TokenPair{}, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, user.Username, nil, nil)
	return pair, nil
}

func (deps *AuthenticateDeps) loginFailed(ctx context.Context, userID, username, reason string) error {
	err := deps.Errors.InvalidCredentials
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, username, err, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return err
}

func (deps *AuthenticateDeps) recordFailure(ctx context.Context, username string) {
	if err := deps.RecordLoginFail(ctx, username); err != nil {
		deps.Warn("goCred: login limiter increment failed", "error", err)
	}
}

// upgradeHash is best effort; a failed upgrade never fails the login.
func (deps *AuthenticateDeps) upgradeHash(ctx context.Context, user UserRecord, password string) {
	if deps.HashPassword == nil || deps.RehashPassword == nil {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("goCred: password rehash failed", "user_id", user.UserID, "error", err)
		return
	}
	if err := deps.RehashPassword(ctx, user, hash); err != nil {
		deps.Warn("goCred: password rehash store failed", "user_id", user.UserID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}

func normalizeAuthenticateDeps(deps *AuthenticateDeps) {
	if deps.CheckLoginRate == nil {
		deps.CheckLoginRate = func(context.Context, string) error { return nil }
	}
	if deps.RecordLoginFail == nil {
		deps.RecordLoginFail = func(context.Context, string) error { return nil }
	}
	if deps.ResetLoginRate == nil {
		deps.ResetLoginRate = func(context.Context, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
	if deps.NeedsRehash == nil {
		deps.NeedsRehash = func(string) bool { return false }
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
