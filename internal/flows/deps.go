package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register       RegisterDeps
	Authenticate   AuthenticateDeps
	Refresh        RefreshDeps
	Validate       ValidateDeps
	ChangePassword ChangePasswordDeps
	Recovery       RecoveryDeps
}

// TokenPair is the flow-local access+refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserRecord is the flow-local view of a stored user.
type UserRecord struct {
	UserID            string
	Username          string
	Email             string
	PasswordHash      string
	Role              string
	PasswordChangedAt time.Time
}

// AuditFunc records a single audit event. metadata is evaluated lazily so
// disabled audit pipelines pay nothing for it.
type AuditFunc func(ctx context.Context, event string, success bool, userID, username string, err error, metadata func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopWarn(string, ...any) {}
