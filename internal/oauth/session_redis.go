package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis session driver.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// RedisSessionStore keeps sessions in Redis with a per-key TTL, so that
// any replica can complete a login another replica began.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*RedisSessionStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "agentgate:authsession:"
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl, prefix: prefix}, nil
}

func (s *RedisSessionStore) key(state string) string {
	return s.prefix + state
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *AuthSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.State), data, s.ttl).Err()
}

// Take uses GETDEL so that two concurrent callbacks cannot both consume
// the same session.
func (s *RedisSessionStore) Take(ctx context.Context, state string) (*AuthSession, error) {
	raw, err := s.client.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var sess AuthSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode authorization session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
