// Package memory provides in-process goCred stores for development and tests.
// Data does not survive a restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"github.com/google/uuid"
)

// UserStore is a mutex-guarded goCred.UserStore. Usernames match exactly;
// emails match case-insensitively.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[string]*goCred.User
	byUsername map[string]string
	byEmail    map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*goCred.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// CreateUser assigns user.ID when empty and stores a copy.
func (s *UserStore) CreateUser(_ context.Context, user *goCred.User) error {
	email := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return goCred.ErrDuplicateUser
	}
	if _, ok := s.byEmail[email]; ok {
		return goCred.ErrDuplicateUser
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	cp := *user
	s.byID[cp.ID] = &cp
	s.byUsername[cp.Username] = cp.ID
	s.byEmail[email] = cp.ID
	return nil
}

func (s *UserStore) GetUserByUsername(_ context.Context, username string) (*goCred.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byUsername[username])
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*goCred.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byEmail[strings.ToLower(email)])
}

func (s *UserStore) GetUserByID(_ context.Context, userID string) (*goCred.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(userID)
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return goCred.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = changedAt
	return nil
}

// lookup must be called with s.mu held.
func (s *UserStore) lookup(id string) (*goCred.User, error) {
	u, ok := s.byID[id]
	if !ok || id == "" {
		return nil, goCred.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// ResetTokenStore is a mutex-guarded goCred.ResetTokenStore. Consume holds
// the write lock across lookup and delete, which makes it atomic.
type ResetTokenStore struct {
	mu      sync.Mutex
	records map[string]goCred.ResetToken
}

func NewResetTokenStore() *ResetTokenStore {
	return &ResetTokenStore{records: make(map[string]goCred.ResetToken)}
}

func (s *ResetTokenStore) SaveResetToken(_ context.Context, token goCred.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[token.Key] = token
	return nil
}

func (s *ResetTokenStore) ConsumeResetToken(_ context.Context, key string) (goCred.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.records[key]
	if !ok {
		return goCred.ResetToken{}, goCred.ErrResetTokenInvalid
	}
	delete(s.records, key)
	return t, nil
}

func (s *ResetTokenStore) DeleteResetTokensForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.records {
		if t.UserID == userID {
			delete(s.records, k)
		}
	}
	return nil
}

// Prune drops records whose expiry is older than before. It returns the
// number removed.
func (s *ResetTokenStore) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, t := range s.records {
		if t.ExpiresAt.Before(before) {
			delete(s.records, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored records.
func (s *ResetTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
