package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecoveryUser is the flow-local user view needed to issue a recovery link.
type RecoveryUser struct {
	UserID   string
	Username string
	Email    string
}

// RecoveryRecord is the flow-local reset token record.
type RecoveryRecord struct {
	Key       string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RecoveryMessage is what the flow asks the notifier to deliver.
type RecoveryMessage struct {
	UserID    string
	Username  string
	Email     string
	Token     string
	URL       string
	ExpiresAt time.Time
}

type RecoveryMetrics struct {
	RecoveryRequest       int
	RecoveryRateLimited   int
	RecoveryNotifyFailure int
	ResetSuccess          int
	ResetFailure          int
	ResetExpired          int
}

type RecoveryEvents struct {
	RecoveryRequest string
	ResetConfirm    string
}

type RecoveryErrors struct {
	EngineNotReady             error
	RecoveryRateLimited        error
	ResetTokenInvalid          error
	ResetTokenExpired          error
	NotificationDeliveryFailed error
	UserNotFound               error
}

// RecoveryDeps captures forgot/reset password dependencies.
type RecoveryDeps struct {
	TokenTTL          time.Duration
	Retention         time.Duration
	SingleActiveToken bool
	RestoreOnFailure  bool

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	CheckRequestLimiter func(ctx context.Context, email, ip string) error
	CheckConfirmLimiter func(ctx context.Context, ip string) error
	MapLimiterError     func(error) error

	GetUserByEmail   func(context.Context, string) (RecoveryUser, error)
	GetUserByID      func(context.Context, string) (RecoveryUser, error)
	IsUserNotFound   func(error) bool
	NewToken         func() (string, error)
	TokenKey         func(string) (string, error)
	BuildURL         func(string) string
	SaveToken        func(ctx context.Context, record RecoveryRecord, ttl time.Duration) error
	ConsumeToken     func(ctx context.Context, key string) (RecoveryRecord, error)
	IsTokenNotFound  func(error) bool
	DeleteUserTokens func(ctx context.Context, userID string) error
	Notify           func(context.Context, RecoveryMessage) error

	CheckPolicy        func(string) error
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string, changedAt time.Time) error
	MapStoreError      func(error) error

	Warn      func(string, ...any)
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RecoveryMetrics
	Events  RecoveryEvents
	Errors  RecoveryErrors
}

// RunRequestRecovery issues a reset token for email and hands the link to the
// notifier. An unknown email returns nil with no side effect beyond audit, so
// callers cannot distinguish it from a real delivery.
func RunRequestRecovery(ctx context.Context, email string, deps RecoveryDeps) error {
	normalizeRecoveryDeps(&deps)

	if deps.GetUserByEmail == nil || deps.NewToken == nil || deps.TokenKey == nil ||
		deps.SaveToken == nil || deps.Notify == nil {
		return deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		deps.EmitAudit(ctx, deps.Events.RecoveryRequest, true, "", "", nil, func() map[string]string {
			return map[string]string{"enumeration_safe": "true", "reason": "empty_email"}
		})
		return nil
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.CheckRequestLimiter(ctx, email, ip); err != nil {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.RecoveryRateLimited) {
			deps.MetricInc(deps.Metrics.RecoveryRateLimited)
		}
		deps.EmitAudit(ctx, deps.Events.RecoveryRequest, false, "", "", mapped, func() map[string]string {
			return map[string]string{"ip": ip}
		})
		return mapped
	}

	deps.MetricInc(deps.Metrics.RecoveryRequest)

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !deps.IsUserNotFound(err) {
			return deps.MapStoreError(err)
		}
		deps.EmitAudit(ctx, deps.Events.RecoveryRequest, true, "", "", nil, func() map[string]string {
			return map[string]string{"enumeration_safe": "true"}
		})
		return nil
	}

	if deps.SingleActiveToken && deps.DeleteUserTokens != nil {
		if err := deps.DeleteUserTokens(ctx, user.UserID); err != nil {
			return deps.MapStoreError(err)
		}
	}

	token, err := deps.NewToken()
	if err != nil {
		return err
	}
	key, err := deps.TokenKey(token)
	if err != nil {
		return err
	}

	now := deps.Now()
	record := RecoveryRecord{
		Key:       key,
		UserID:    user.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.TokenTTL),
	}
	if err := deps.SaveToken(ctx, record, deps.TokenTTL+deps.Retention); err != nil {
		mapped := deps.MapStoreError(err)
		deps.EmitAudit(ctx, deps.Events.RecoveryRequest, false, user.UserID, user.Username, mapped, nil)
		return mapped
	}

	msg := RecoveryMessage{
		UserID:    user.UserID,
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		URL:       deps.BuildURL(token),
		ExpiresAt: record.ExpiresAt,
	}
	if err := deps.Notify(ctx, msg); err != nil {
		// An undelivered token is unreachable by the user; drop it.
		if deps.ConsumeToken != nil {
			if _, delErr := deps.ConsumeToken(ctx, key); delErr != nil && !deps.IsTokenNotFound(delErr) {
				deps.Warn("goCred: undelivered reset token cleanup failed", "user_id", user.UserID, "error", delErr)
			}
		}
		deps.MetricInc(deps.Metrics.RecoveryNotifyFailure)
		wrapped := fmt.Errorf("%w: %v", deps.Errors.NotificationDeliveryFailed, err)
		deps.EmitAudit(ctx, deps.Events.RecoveryRequest, false, user.UserID, user.Username, wrapped, nil)
		return wrapped
	}

	deps.EmitAudit(ctx, deps.Events.RecoveryRequest, true, user.UserID, user.Username, nil, nil)
	return nil
}

// RunConfirmRecovery consumes a reset token and sets the bound user's password.
// It returns the user ID whose password changed.
//
// The token is consumed atomically before the update, so two concurrent calls
// with the same token cannot both succeed. If the update then fails the token
// is put back with its original expiry.
func RunConfirmRecovery(ctx context.Context, token, newPassword string, deps RecoveryDeps) (string, error) {
	normalizeRecoveryDeps(&deps)

	if deps.TokenKey == nil || deps.ConsumeToken == nil || deps.SaveToken == nil || deps.CheckPolicy == nil ||
		deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return "", deps.Errors.EngineNotReady
	}

	var userID, username string
	fail := func(err error, reason string) (string, error) {
		deps.MetricInc(deps.Metrics.ResetFailure)
		deps.EmitAudit(ctx, deps.Events.ResetConfirm, false, userID, username, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return "", err
	}

	if err := deps.CheckConfirmLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
		return fail(deps.MapLimiterError(err), "rate_limited")
	}

	key, err := deps.TokenKey(token)
	if err != nil {
		return fail(deps.Errors.ResetTokenInvalid, "format")
	}

	// Policy first: a rejected password must not burn the token.
	if err := deps.CheckPolicy(newPassword); err != nil {
		return fail(err, "policy")
	}

	record, err := deps.ConsumeToken(ctx, key)
	if err != nil {
		if deps.IsTokenNotFound(err) {
			return fail(deps.Errors.ResetTokenInvalid, "unknown")
		}
		return fail(deps.MapStoreError(err), "store")
	}
	userID = record.UserID

	now := deps.Now()
	if !now.Before(record.ExpiresAt) {
		deps.MetricInc(deps.Metrics.ResetExpired)
		return fail(deps.Errors.ResetTokenExpired, "expired")
	}

	// A token whose user is gone stays consumed.
	if deps.GetUserByID != nil {
		user, err := deps.GetUserByID(ctx, record.UserID)
		if err != nil {
			if deps.IsUserNotFound(err) {
				return fail(deps.Errors.UserNotFound, "user_not_found")
			}
			deps.restore(ctx, record, now)
			return fail(deps.MapStoreError(err), "store")
		}
		username = user.Username
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		deps.restore(ctx, record, now)
		return fail(err, "hash")
	}

	if err := deps.UpdatePasswordHash(ctx, record.UserID, hash, now); err != nil {
		if deps.IsUserNotFound(err) {
			return fail(deps.Errors.UserNotFound, "user_not_found")
		}
		deps.restore(ctx, record, now)
		return fail(deps.MapStoreError(err), "store")
	}

	if deps.DeleteUserTokens != nil {
		if err := deps.DeleteUserTokens(ctx, record.UserID); err != nil {
			deps.Warn("goCred: sibling reset token cleanup failed", "user_id", record.UserID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.ResetSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetConfirm, true, record.UserID, username, nil, nil)
	return record.UserID, nil
}

func (deps *RecoveryDeps) restore(ctx context.Context, record RecoveryRecord, now time.Time) {
	if !deps.RestoreOnFailure {
		return
	}
	ttl := record.ExpiresAt.Sub(now) + deps.Retention
	if ttl <= 0 {
		return
	}
	if err := deps.SaveToken(ctx, record, ttl); err != nil {
		deps.Warn("goCred: reset token restore failed", "user_id", record.UserID, "error", err)
	}
}

func normalizeRecoveryDeps(deps *RecoveryDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.CheckRequestLimiter == nil {
		deps.CheckRequestLimiter = func(context.Context, string, string) error { return nil }
	}
	if deps.CheckConfirmLimiter == nil {
		deps.CheckConfirmLimiter = func(context.Context, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
	if deps.IsTokenNotFound == nil {
		deps.IsTokenNotFound = func(error) bool { return false }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.BuildURL == nil {
		deps.BuildURL = func(token string) string { return token }
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
