package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// UserStore implements goCred.UserStore on the users table.
type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *goCred.User) error {
	query :=
		`INSERT INTO users (username, email, password_hash, role, first_name, second_name,
		                    first_last_name, second_last_name, created_at, password_changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id
		 `

	err := s.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, string(user.Role),
		user.FirstName, user.SecondName, user.FirstLastName, user.SecondLastName,
		user.CreatedAt, user.PasswordChangedAt,
	).Scan(&user.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return goCred.ErrDuplicateUser
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const selectUser = `SELECT id, username, email, password_hash, role, first_name, second_name,
		        first_last_name, second_last_name, created_at, password_changed_at
		 FROM users
		 `

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*goCred.User, error) {
	return s.getOne(ctx, selectUser+`WHERE username = $1`, username)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*goCred.User, error) {
	return s.getOne(ctx, selectUser+`WHERE lower(email) = lower($1)`, email)
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*goCred.User, error) {
	return s.getOne(ctx, selectUser+`WHERE id = $1`, userID)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg string) (*goCred.User, error) {
	user := &goCred.User{}
	var role string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role,
		&user.FirstName, &user.SecondName, &user.FirstLastName, &user.SecondLastName,
		&user.CreatedAt, &user.PasswordChangedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goCred.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Role = goCred.Role(role)
	return user, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	query :=
		`UPDATE users SET password_hash = $2, password_changed_at = $3
		 WHERE id = $1
		 `

	res, err := s.db.ExecContext(ctx, query, userID, passwordHash, changedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goCred.ErrUserNotFound
	}
	return nil
}
