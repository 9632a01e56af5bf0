// Package notify provides goCred.Notifier implementations.
//
// LogNotifier writes the recovery link to a slog.Logger and is meant for
// development. StreamNotifier appends each recovery request to a Redis stream
// for an out-of-process mail worker to deliver.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	goCred "github.com/MrEthical07/goCred"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream used when StreamConfig.Stream is empty.
const DefaultStream = "gocred:recovery"

// ErrStreamUnavailable is returned when the stream append fails.
var ErrStreamUnavailable = errors.New("recovery stream unavailable")

// LogNotifier logs recovery notifications. It never fails.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendRecovery(ctx context.Context, msg goCred.RecoveryNotification) error {
	n.logger.LogAttrs(ctx, slog.LevelInfo, "goCred: recovery link issued",
		slog.String("user_id", msg.UserID),
		slog.String("email", msg.Email),
		slog.String("url", msg.URL),
		slog.Time("expires_at", msg.ExpiresAt),
	)
	return nil
}

// StreamConfig configures StreamNotifier.
type StreamConfig struct {
	Stream string
	// MaxLen caps the stream length (approximate trimming). Zero disables trimming.
	MaxLen int64
}

// StreamNotifier publishes recovery notifications with XADD.
type StreamNotifier struct {
	redis  redis.UniversalClient
	stream string
	maxLen int64
}

func NewStreamNotifier(rdb redis.UniversalClient, cfg StreamConfig) *StreamNotifier {
	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamNotifier{redis: rdb, stream: stream, maxLen: cfg.MaxLen}
}

// SendRecovery appends the notification. A nil error means Redis accepted
// the entry; delivery to the mailbox is the consumer's concern.
func (n *StreamNotifier) SendRecovery(ctx context.Context, msg goCred.RecoveryNotification) error {
	if n == nil || n.redis == nil {
		return ErrStreamUnavailable
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"user_id":    msg.UserID,
			"username":   msg.Username,
			"email":      msg.Email,
			"url":        msg.URL,
			"expires_at": strconv.FormatInt(msg.ExpiresAt.Unix(), 10),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}

	if err := n.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}
	return nil
}

// Multi fans a notification out to every notifier in order and fails on the
// first error.
type Multi []goCred.Notifier

func (m Multi) SendRecovery(ctx context.Context, msg goCred.RecoveryNotification) error {
	for _, n := range m {
		if err := n.SendRecovery(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
