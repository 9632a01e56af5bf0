package goCred

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/MrEthical07/goCred/internal"
	internalflows "github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/internal/limiters"
)

const (
	// PasswordChangedMessage is the message carried by a successful PasswordChangeResult.
	PasswordChangedMessage = "Password changed successfully"
	// RecoveryAcknowledgement is returned to forgot-password callers whether or not the email exists.
	RecoveryAcknowledgement = "If the email exists, a recovery link has been sent"
	// PasswordResetMessage acknowledges a completed reset.
	PasswordResetMessage = "Password reset successfully"
)

// ChangePassword replaces the password of the user named by accessToken
// after verifying currentPassword. Previously issued tokens remain valid
// until they expire.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) (PasswordChangeResult, error) {
	if e == nil {
		return PasswordChangeResult{}, ErrEngineNotReady
	}
	at, err := internalflows.RunChangePassword(ctx, accessToken, currentPassword, newPassword, e.flows.ChangePassword)
	if err != nil {
		return PasswordChangeResult{}, err
	}
	return PasswordChangeResult{
		Success:    true,
		Message:    PasswordChangedMessage,
		LastChange: at,
	}, nil
}

// InitiateRecovery mails a reset link to the user registered under email.
// An unknown email returns nil and sends nothing. Delivery failures return
// ErrNotificationDeliveryFailed and leave no usable token behind.
func (e *Engine) InitiateRecovery(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunRequestRecovery(ctx, email, e.flows.Recovery)
}

// ResetPassword consumes token and sets the bound user's password. Unknown
// or already used tokens return ErrResetTokenInvalid; expired ones return
// ErrResetTokenExpired. Of concurrent calls with one token at most one succeeds.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	_, err := internalflows.RunConfirmRecovery(ctx, token, newPassword, e.flows.Recovery)
	return err
}

func (e *Engine) changePasswordFlowDeps() internalflows.ChangePasswordDeps {
	return internalflows.ChangePasswordDeps{
		Now:                e.now,
		UsernameFromAccess: func(token string) (string, error) {
			claims, err := e.jwtManager.ParseAccess(token)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		},
		GetUserByName:      e.userByName,
		IsUserNotFound:     func(err error) bool { return errors.Is(err, ErrUserNotFound) },
		MapStoreError:      mapStoreError,
		VerifyPassword:     e.hasher.Verify,
		CheckPolicy:        e.checkPolicy,
		HashPassword:       e.hasher.Hash,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		MetricInc:          func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:          e.emitAudit,
		Metrics: internalflows.ChangePasswordMetrics{
			PasswordChangeSuccess: int(MetricPasswordChangeSuccess),
			PasswordChangeFailure: int(MetricPasswordChangeFailure),
		},
		Events: internalflows.ChangePasswordEvents{
			PasswordChange: auditEventPasswordChange,
		},
		Errors: internalflows.ChangePasswordErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			UserNotFound:       ErrUserNotFound,
			PasswordReuse:      ErrPasswordReuse,
		},
	}
}

func (e *Engine) recoveryFlowDeps() internalflows.RecoveryDeps {
	cfg := e.config.Recovery
	return internalflows.RecoveryDeps{
		TokenTTL:            cfg.TokenTTL,
		Retention:           cfg.ExpiredRetention,
		SingleActiveToken:   cfg.SingleActiveToken,
		RestoreOnFailure:    cfg.RestoreOnFailure,
		Now:                 e.now,
		ClientIPFromContext: ClientIPFromContext,
		CheckRequestLimiter: e.recoveryLimiter.CheckRequest,
		CheckConfirmLimiter: e.recoveryLimiter.CheckConfirm,
		MapLimiterError:     mapRecoveryLimiterError,
		GetUserByEmail: func(ctx context.Context, email string) (internalflows.RecoveryUser, error) {
			user, err := e.users.GetUserByEmail(ctx, email)
			if err != nil {
				return internalflows.RecoveryUser{}, err
			}
			if user == nil {
				return internalflows.RecoveryUser{}, ErrUserNotFound
			}
			return internalflows.RecoveryUser{UserID: user.ID, Username: user.Username, Email: user.Email}, nil
		},
		GetUserByID: func(ctx context.Context, id string) (internalflows.RecoveryUser, error) {
			user, err := e.users.GetUserByID(ctx, id)
			if err != nil {
				return internalflows.RecoveryUser{}, err
			}
			if user == nil {
				return internalflows.RecoveryUser{}, ErrUserNotFound
			}
			return internalflows.RecoveryUser{UserID: user.ID, Username: user.Username, Email: user.Email}, nil
		},
		IsUserNotFound: func(err error) bool { return errors.Is(err, ErrUserNotFound) },
		NewToken:       internal.NewResetToken,
		TokenKey:       internal.ResetTokenKey,
		BuildURL:       e.recoveryURL,
		SaveToken: func(ctx context.Context, record internalflows.RecoveryRecord, _ time.Duration) error {
			return e.resets.SaveResetToken(ctx, ResetToken{
				Key:       record.Key,
				UserID:    record.UserID,
				CreatedAt: record.CreatedAt,
				ExpiresAt: record.ExpiresAt,
			})
		},
		ConsumeToken: func(ctx context.Context, key string) (internalflows.RecoveryRecord, error) {
			t, err := e.resets.ConsumeResetToken(ctx, key)
			if err != nil {
				return internalflows.RecoveryRecord{}, err
			}
			return internalflows.RecoveryRecord{
				Key:       t.Key,
				UserID:    t.UserID,
				CreatedAt: t.CreatedAt,
				ExpiresAt: t.ExpiresAt,
			}, nil
		},
		IsTokenNotFound:  func(err error) bool { return errors.Is(err, ErrResetTokenInvalid) },
		DeleteUserTokens: e.resets.DeleteResetTokensForUser,
		Notify: func(ctx context.Context, msg internalflows.RecoveryMessage) error {
			return e.notifier.SendRecovery(ctx, RecoveryNotification{
				UserID:    msg.UserID,
				Username:  msg.Username,
				Email:     msg.Email,
				Token:     msg.Token,
				URL:       msg.URL,
				ExpiresAt: msg.ExpiresAt,
			})
		},
		CheckPolicy:        e.checkPolicy,
		HashPassword:       e.hasher.Hash,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		MapStoreError:      mapStoreError,
		Warn:               e.warn,
		MetricInc:          func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:          e.emitAudit,
		Metrics: internalflows.RecoveryMetrics{
			RecoveryRequest:       int(MetricRecoveryRequest),
			RecoveryRateLimited:   int(MetricRecoveryRateLimited),
			RecoveryNotifyFailure: int(MetricRecoveryNotifyFailure),
			ResetSuccess:          int(MetricResetSuccess),
			ResetFailure:          int(MetricResetFailure),
			ResetExpired:          int(MetricResetExpired),
		},
		Events: internalflows.RecoveryEvents{
			RecoveryRequest: auditEventRecoveryRequest,
			ResetConfirm:    auditEventResetConfirm,
		},
		Errors: internalflows.RecoveryErrors{
			EngineNotReady:             ErrEngineNotReady,
			RecoveryRateLimited:        ErrRecoveryRateLimited,
			ResetTokenInvalid:          ErrResetTokenInvalid,
			ResetTokenExpired:          ErrResetTokenExpired,
			NotificationDeliveryFailed: ErrNotificationDeliveryFailed,
			UserNotFound:               ErrUserNotFound,
		},
	}
}

// recoveryURL appends token to ResetURLBase as the "token" query parameter,
// keeping any query the base already has.
func (e *Engine) recoveryURL(token string) string {
	u, err := url.Parse(e.config.Recovery.ResetURLBase)
	if err != nil {
		return e.config.Recovery.ResetURLBase + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func mapRecoveryLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRecoveryRateLimited):
		return ErrRecoveryRateLimited
	case errors.Is(err, limiters.ErrRecoveryRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
