package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// RedisStore keeps each session as a capped Redis list so several server
// processes can share conversations.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxHistory int
	ttl        time.Duration
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	MaxHistory int
	TTL        time.Duration // 0 keeps sessions forever
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return newRedisStore(client, opts), nil
}

func newRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "courserag:session:"
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	return &RedisStore{
		client:     client,
		prefix:     opts.KeyPrefix,
		maxHistory: opts.MaxHistory,
		ttl:        opts.TTL,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// CreateSession returns a fresh id. Nothing is written until the first message.
func (s *RedisStore) CreateSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// AddMessage appends one turn and trims the list.
func (s *RedisStore) AddMessage(ctx context.Context, sessionID, role, content string) error {
	return s.push(ctx, sessionID, message{Role: role, Content: content})
}

// AddExchange appends a user turn and the assistant's reply in one transaction.
func (s *RedisStore) AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) error {
	return s.push(ctx, sessionID,
		message{Role: entities.RoleUser, Content: userMessage},
		message{Role: entities.RoleAssistant, Content: assistantMessage},
	)
}

func (s *RedisStore) push(ctx context.Context, sessionID string, msgs ...message) error {
	values := make([]any, len(msgs))
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		values[i] = data
	}

	key := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.maxHistory*2), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending to session %s: %w", sessionID, err)
	}
	return nil
}

// History returns the formatted history, or "" for unknown sessions.
func (s *RedisStore) History(ctx context.Context, sessionID string) (string, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	msgs := make([]message, 0, len(raw))
	for _, r := range raw {
		var m message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return formatHistory(msgs), nil
}

// Clear deletes the session's list.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
