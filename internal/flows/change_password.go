package flows

import (
	"context"
	"errors"
	"time"
)

type ChangePasswordMetrics struct {
	PasswordChangeSuccess int
	PasswordChangeFailure int
}

type ChangePasswordEvents struct {
	PasswordChange string
}

type ChangePasswordErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	UserNotFound       error
	PasswordReuse      error
}

// ChangePasswordDeps captures authenticated password change dependencies.
type ChangePasswordDeps struct {
	Now func() time.Time

	UsernameFromAccess func(string) (string, error)
	GetUserByName      func(context.Context, string) (UserRecord, error)
	IsUserNotFound     func(error) bool
	MapStoreError      func(error) error
	VerifyPassword     func(password, hash string) (bool, error)
	CheckPolicy        func(string) error
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string, changedAt time.Time) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ChangePasswordMetrics
	Events  ChangePasswordEvents
	Errors  ChangePasswordErrors
}

// RunChangePassword replaces the caller's password after re-verifying the
// current one. It returns the time recorded as the password change. Tokens
// already issued stay valid until they expire.
func RunChangePassword(ctx context.Context, accessToken, current, next string, deps ChangePasswordDeps) (time.Time, error) {
	normalizeChangePasswordDeps(&deps)

	if deps.UsernameFromAccess == nil || deps.GetUserByName == nil || deps.VerifyPassword == nil ||
		deps.CheckPolicy == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return time.Time{}, deps.Errors.EngineNotReady
	}

	var userID, username string
	fail := func(err error, reason string) (time.Time, error) {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, userID, username, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return time.Time{}, err
	}

	username, err := deps.UsernameFromAccess(accessToken)
	if err != nil {
		return fail(err, "token")
	}

	user, err := deps.GetUserByName(ctx, username)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return time.Time{}, err
		}
		if deps.IsUserNotFound(err) {
			return fail(deps.Errors.UserNotFound, "user_not_found")
		}
		return fail(deps.MapStoreError(err), "store")
	}
	userID = user.UserID

	ok, err := deps.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return fail(deps.Errors.InvalidCredentials, "current_password")
	}
	if err := deps.CheckPolicy(next); err != nil {
		return fail(err, "policy")
	}
	if next == current {
		return fail(deps.Errors.PasswordReuse, "reuse")
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return fail(err, "hash")
	}

	changedAt := deps.Now()
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash, changedAt); err != nil {
		if deps.IsUserNotFound(err) {
			return fail(deps.Errors.UserNotFound, "user_not_found")
		}
		return fail(deps.MapStoreError(err), "store")
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, user.UserID, user.Username, nil, nil)
	return changedAt, nil
}

func normalizeChangePasswordDeps(deps *ChangePasswordDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
