package flows

import (
	"context"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureToken
	RefreshFailureUserNotFound
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Err      error
	Username string
	UserID   string
	Pair     TokenPair
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	UsernameFromRefresh func(string) (string, error)
	GetUserByName       func(context.Context, string) (UserRecord, error)
	IsUserNotFound      func(error) bool
	IssueTokenPair      func(username, role string) (TokenPair, error)
}

// RunRefresh verifies a refresh-type token, reloads the user and issues a new
// pair. The role in the new pair comes from the store, not the old token.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	username, err := deps.UsernameFromRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureToken, Err: err}
	}

	user, err := deps.GetUserByName(ctx, username)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, Username: username}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Username: username}
	}

	pair, err := deps.IssueTokenPair(user.Username, user.Role)
	if err != nil {
		return RefreshResult{
			Failure:  RefreshFailureIssue,
			Err:      err,
			Username: username,
			UserID:   user.UserID,
		}
	}

	return RefreshResult{
		Username: user.Username,
		UserID:   user.UserID,
		Pair:     pair,
	}
}
