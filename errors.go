package goCred

import (
	"errors"

	"github.com/MrEthical07/goCred/jwt"
)

var (
	// ErrDuplicateUser is returned by Register when the username or email is taken.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	// The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a verified token names a user that no
	// longer exists in the credential store.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenMalformed is returned when a bearer token cannot be decoded.
	ErrTokenMalformed = jwt.ErrTokenMalformed
	// ErrTokenSignatureInvalid is returned when a bearer token fails signature verification.
	ErrTokenSignatureInvalid = jwt.ErrTokenSignatureInvalid
	// ErrTokenExpired is returned for a correctly signed token at or past its expiry.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenInvalid is returned for verified tokens whose claims are unusable,
	// including a refresh token presented as an access token and vice versa.
	ErrTokenInvalid = jwt.ErrTokenInvalid

	// ErrResetTokenInvalid is returned when a reset token is unknown or already used.
	ErrResetTokenInvalid = errors.New("reset token invalid")
	// ErrResetTokenExpired is returned when a reset token exists but its expiry has passed.
	ErrResetTokenExpired = errors.New("reset token expired")
	// ErrNotificationDeliveryFailed is returned when the notifier could not
	// confirm delivery of a recovery link.
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")

	// ErrPasswordPolicy is returned when a new password violates the configured policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change keeps the same password.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrRoleInvalid is returned when registration names a role outside Config.Account.Roles.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrRegistrationInvalid is returned when a registration request misses required fields.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrLoginRateLimited is returned when login attempts for a username exceed the window budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRecoveryRateLimited is returned when recovery requests exceed the window budget.
	ErrRecoveryRateLimited = errors.New("recovery rate limited")
	// ErrStoreUnavailable wraps backend failures from stores and limiters.
	ErrStoreUnavailable = errors.New("credential backend unavailable")
	// ErrEngineNotReady is returned when an Engine is used without its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// kinds is ordered so that the more specific sentinel wins when an error wraps several.
var kinds = []struct {
	err  error
	kind string
}{
	{ErrDuplicateUser, "DuplicateUser"},
	{ErrInvalidCredentials, "InvalidCredentials"},
	{ErrUserNotFound, "UserNotFound"},
	{ErrTokenMalformed, "TokenMalformed"},
	{ErrTokenSignatureInvalid, "TokenSignatureInvalid"},
	{ErrTokenExpired, "TokenExpired"},
	{ErrTokenInvalid, "TokenInvalid"},
	{ErrResetTokenInvalid, "ResetTokenInvalid"},
	{ErrResetTokenExpired, "ResetTokenExpired"},
	{ErrNotificationDeliveryFailed, "NotificationDeliveryFailed"},
	{ErrPasswordPolicy, "PasswordPolicy"},
	{ErrPasswordReuse, "PasswordReuse"},
	{ErrRoleInvalid, "RoleInvalid"},
	{ErrRegistrationInvalid, "RegistrationInvalid"},
	{ErrLoginRateLimited, "LoginRateLimited"},
	{ErrRecoveryRateLimited, "RecoveryRateLimited"},
	{ErrStoreUnavailable, "StoreUnavailable"},
	{ErrEngineNotReady, "EngineNotReady"},
}

// ErrorKind returns a stable code for err suitable for transport mapping and
// audit records. Unknown errors map to "Internal"; nil maps to "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
