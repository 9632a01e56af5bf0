package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goCred "github.com/MrEthical07/goCred"
)

// ResetTokenStore implements goCred.ResetTokenStore on password_reset_tokens.
// Consume is a single DELETE ... RETURNING, so concurrent callers race inside
// Postgres and at most one gets the row.
type ResetTokenStore struct {
	db DBTX
}

func NewResetTokenStore(db DBTX) *ResetTokenStore {
	return &ResetTokenStore{db: db}
}

// SaveResetToken inserts token, replacing any row with the same key.
func (s *ResetTokenStore) SaveResetToken(ctx context.Context, token goCred.ResetToken) error {
	query :=
		`INSERT INTO password_reset_tokens (token_key, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (token_key) DO UPDATE
		 SET user_id = EXCLUDED.user_id, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
		 `

	if _, err := s.db.ExecContext(ctx, query, token.Key, token.UserID, token.CreatedAt, token.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *ResetTokenStore) ConsumeResetToken(ctx context.Context, key string) (goCred.ResetToken, error) {
	query :=
		`DELETE FROM password_reset_tokens
		 WHERE token_key = $1
		 RETURNING user_id, created_at, expires_at
		 `

	t := goCred.ResetToken{Key: key}
	err := s.db.QueryRowContext(ctx, query, key).Scan(&t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goCred.ResetToken{}, goCred.ErrResetTokenInvalid
		}
		return goCred.ResetToken{}, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (s *ResetTokenStore) DeleteResetTokensForUser(ctx context.Context, userID string) error {
	query :=
		`DELETE FROM password_reset_tokens
		 WHERE user_id = $1
		 `

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Prune deletes rows that expired before before and returns how many went.
func (s *ResetTokenStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	query :=
		`DELETE FROM password_reset_tokens
		 WHERE expires_at < $1
		 `

	res, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
