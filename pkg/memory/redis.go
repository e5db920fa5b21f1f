// Package memory provides conversation history buffers. These hold the
// short-term turn history fed into orchestration; long-term memories live in
// the memory store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

const keyPrefix = "evermind:conversation:"

// RedisConversationBuffer implements interfaces.ConversationStore on Redis.
// Each session is a list of JSON-encoded messages.
type RedisConversationBuffer struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// RedisOption represents an option for configuring the buffer.
type RedisOption func(*RedisConversationBuffer)

// WithTTL sets the idle expiry applied to each session's history.
func WithTTL(ttl time.Duration) RedisOption {
	return func(b *RedisConversationBuffer) {
		b.ttl = ttl
	}
}

// WithLogger sets the logger for the buffer.
func WithLogger(logger logging.Logger) RedisOption {
	return func(b *RedisConversationBuffer) {
		b.logger = logger
	}
}

// NewRedisConversationBuffer creates a conversation buffer on an existing
// Redis client.
func NewRedisConversationBuffer(client *redis.Client, options ...RedisOption) *RedisConversationBuffer {
	b := &RedisConversationBuffer{
		client: client,
		ttl:    7 * 24 * time.Hour,
		logger: logging.New(),
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// AddMessage implements interfaces.ConversationStore.
func (b *RedisConversationBuffer) AddMessage(ctx context.Context, sessionID string, message interfaces.Message) error {
	raw, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	key := keyPrefix + sessionID
	if err := b.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if b.ttl > 0 {
		if err := b.client.Expire(ctx, key, b.ttl).Err(); err != nil {
			b.logger.Warn(ctx, "Failed to refresh conversation TTL", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	return nil
}

// GetMessages implements interfaces.ConversationStore.
func (b *RedisConversationBuffer) GetMessages(ctx context.Context, sessionID string, limit int) ([]interfaces.Message, error) {
	key := keyPrefix + sessionID

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := b.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	messages := make([]interfaces.Message, 0, len(raw))
	for _, item := range raw {
		var msg interfaces.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			b.logger.Warn(ctx, "Skipping undecodable message", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Clear implements interfaces.ConversationStore.
func (b *RedisConversationBuffer) Clear(ctx context.Context, sessionID string) error {
	if err := b.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}

var _ interfaces.ConversationStore = (*RedisConversationBuffer)(nil)
