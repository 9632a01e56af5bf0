package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1
	maxConsumeRetries    = 4
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type ResetRecord struct {
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// ResetTokenStore keeps reset records keyed by the token digest, plus a
// per-user set of live digests so earlier tokens can be revoked in one step.
type ResetTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewResetTokenStore(redisClient redis.UniversalClient, prefix string) *ResetTokenStore {
	if prefix == "" {
		prefix = "gcr"
	}
	return &ResetTokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResetTokenStore) key(tokenKey string) string {
	return s.prefix + ":rt:" + tokenKey
}

func (s *ResetTokenStore) userKey(userID string) string {
	return s.prefix + ":rtu:" + userID
}

// saveResetLua stores a record and adds it to the user's index.
//
// KEYS[1] = record key
// KEYS[2] = user index key
// ARGV[1] = encoded record
// ARGV[2] = ttl in milliseconds
// ARGV[3] = token key
//
// The index TTL only ever grows, so restoring a short-lived token cannot
// expire the index ahead of a longer-lived sibling.
var saveResetLua = redis.NewScript(`
local ttl = tonumber(ARGV[2])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
redis.call('SADD', KEYS[2], ARGV[3])
local current = redis.call('PTTL', KEYS[2])
if current < ttl then
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// Save stores record under tokenKey for ttl and indexes it by user.
func (s *ResetTokenStore) Save(ctx context.Context, tokenKey string, record *ResetRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("reset record ttl must be > 0")
	}
	encoded, err := encodeResetRecord(record)
	if err != nil {
		return err
	}

	ttlMs := ttl.Milliseconds()
	if ttlMs < 1 {
		ttlMs = 1
	}
	err = saveResetLua.Run(ctx, s.redis,
		[]string{s.key(tokenKey), s.userKey(record.UserID)},
		encoded, ttlMs, tokenKey,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return nil
}

// Consume atomically reads and deletes the record for tokenKey. Of several
// concurrent callers at most one receives the record; the others observe
// ErrResetNotFound. Expiry is not checked here.
func (s *ResetTokenStore) Consume(ctx context.Context, tokenKey string) (*ResetRecord, error) {
	key := s.key(tokenKey)

	for i := 0; i < maxConsumeRetries; i++ {
		var matched *ResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeResetRecord(data)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, s.userKey(record.UserID), tokenKey)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrResetNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}

		return matched, nil
	}

	// Every attempt lost a race with a concurrent writer on the same key.
	return nil, ErrResetNotFound
}

// DeleteForUser removes every indexed reset record of userID. The index is
// watched so a token saved concurrently is either deleted or left indexed.
func (s *ResetTokenStore) DeleteForUser(ctx context.Context, userID string) error {
	idx := s.userKey(userID)

	for i := 0; i < maxConsumeRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			members, err := tx.SMembers(ctx, idx).Result()
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(members)+1)
			for _, m := range members {
				keys = append(keys, s.key(m))
			}
			keys = append(keys, idx)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, keys...)
				return nil
			})
			return err
		}, idx)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: index contention", ErrResetRedisUnavailable)
}

// Get returns the record without consuming it.
func (s *ResetTokenStore) Get(ctx context.Context, tokenKey string) (*ResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(tokenKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return decodeResetRecord(data)
}

func encodeResetRecord(record *ResetRecord) ([]byte, error) {
	if record == nil || record.UserID == "" {
		return nil, errors.New("reset record user id required")
	}

	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("reset record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeResetRecord(data []byte) (*ResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	record := &ResetRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	return record, nil
}
