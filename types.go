package goCred

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/goCred/internal/audit"
)

// Role is the enumerated authorization role stored on a user and carried in
// the "role" claim of issued tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the credential record owned by the UserStore. Profile names are
// carried through for the store but play no part in credential decisions.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role

	FirstName      string
	SecondName     string
	FirstLastName  string
	SecondLastName string

	CreatedAt         time.Time
	PasswordChangedAt time.Time
}

// RegisterRequest carries the fields accepted by Engine.Register.
type RegisterRequest struct {
	Username       string
	Email          string
	Password       string
	Role           Role
	FirstName      string
	SecondName     string
	FirstLastName  string
	SecondLastName string
}

// TokenPair is the result of Register, Authenticate and Refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// PasswordChangeResult is returned by Engine.ChangePassword.
type PasswordChangeResult struct {
	Success    bool
	Message    string
	LastChange time.Time
}

// ResetToken is a stored recovery record. Key is derived from the opaque token
// handed to the user; the token itself is never persisted.
type ResetToken struct {
	Key       string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry is at or before now.
func (t ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RecoveryNotification is handed to the Notifier once a reset token exists.
type RecoveryNotification struct {
	UserID    string
	Username  string
	Email     string
	Token     string
	URL       string
	ExpiresAt time.Time
}

// UserStore persists users. Implementations must enforce unique usernames and
// emails and report violations as ErrDuplicateUser; missing users are ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
}

// ResetTokenStore persists reset tokens.
//
// ConsumeResetToken must atomically remove and return the record for key, so
// that of two concurrent callers at most one receives it; the other gets
// ErrResetTokenInvalid. Expired records are returned (and removed) like any
// other so the engine can report ErrResetTokenExpired.
type ResetTokenStore interface {
	SaveResetToken(ctx context.Context, token ResetToken) error
	ConsumeResetToken(ctx context.Context, key string) (ResetToken, error)
	DeleteResetTokensForUser(ctx context.Context, userID string) error
}

// Notifier delivers recovery links out of band. A nil error means the
// delivery was accepted by the downstream channel.
type Notifier interface {
	SendRecovery(ctx context.Context, n RecoveryNotification) error
}

// AuditEvent is a single security-relevant record emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
