// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sink delivers a message. Implementations may block on I/O.
type Sink interface {
	Send(ctx context.Context, message Message) error
}

// # Log Sink

// LogSink records message metadata and drops the body.
//
// Bodies carry reset codes and signed links, so they never reach the log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send implements [Sink].
func (sink *LogSink) Send(ctx context.Context, message Message) error {
	sink.logger.InfoContext(ctx, "notify_message_logged",
		slog.String("kind", string(message.Kind)),
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
	)
	return nil
}

// # Redis Outbox Sink

// RedisOutboxSink queues messages as JSON on a Redis list. A mail relay pops
// from the other end with [RedisOutboxSink.Next].
type RedisOutboxSink struct {
	client redis.Cmdable
	key    string
}

// NewRedisOutboxSink returns an outbox writing to key.
func NewRedisOutboxSink(client redis.Cmdable, key string) *RedisOutboxSink {
	return &RedisOutboxSink{client: client, key: key}
}

// Send implements [Sink] with LPUSH.
func (sink *RedisOutboxSink) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("notify_outbox_marshal_failed: %w", err)
	}

	if err := sink.client.LPush(ctx, sink.key, payload).Err(); err != nil {
		return fmt.Errorf("notify_outbox_push_failed: %w", err)
	}
	return nil
}

// Next blocks up to timeout for the oldest queued message.
// It returns (nil, nil) when the outbox stays empty.
func (sink *RedisOutboxSink) Next(ctx context.Context, timeout time.Duration) (*Message, error) {
	result, err := sink.client.BRPop(ctx, timeout, sink.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify_outbox_pop_failed: %w", err)
	}

	// BRPOP replies with [key, value].
	var message Message
	if err := json.Unmarshal([]byte(result[1]), &message); err != nil {
		return nil, fmt.Errorf("notify_outbox_unmarshal_failed: %w", err)
	}
	return &message, nil
}

// Len reports how many messages are waiting.
func (sink *RedisOutboxSink) Len(ctx context.Context) (int64, error) {
	return sink.client.LLen(ctx, sink.key).Result()
}
