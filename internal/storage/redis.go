package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finance-client/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis at addr, which may be a redis:// URL or a
// bare host:port.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "redis://" + addr
	}
	opt, err := redis.ParseURL(addr)
	if err != nil {
		// Fallback to simple connection
		opt = &redis.Options{Addr: strings.TrimPrefix(addr, "redis://")}
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisTokenStore keeps the token pair in Redis so several client processes
// share one session.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore creates a store whose keys are prefixed with prefix.
func NewRedisTokenStore(client *redis.Client, prefix string) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: prefix}
}

func (s *RedisTokenStore) key(name string) string {
	return s.prefix + name
}

// SaveTokens writes both tokens in a MULTI/EXEC block.
func (s *RedisTokenStore) SaveTokens(ctx context.Context, tokens models.TokenPair) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.MSet(ctx,
			s.key(AccessTokenKey), tokens.AccessToken,
			s.key(RefreshTokenKey), tokens.RefreshToken,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

// LoadTokens returns the stored pair, or an empty pair if either half is
// missing.
func (s *RedisTokenStore) LoadTokens(ctx context.Context) (models.TokenPair, error) {
	vals, err := s.client.MGet(ctx, s.key(AccessTokenKey), s.key(RefreshTokenKey)).Result()
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to load tokens: %w", err)
	}
	access, _ := vals[0].(string)
	refresh, _ := vals[1].(string)
	if access == "" || refresh == "" {
		return models.TokenPair{}, nil
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ClearTokens deletes both keys with a single DEL.
func (s *RedisTokenStore) ClearTokens(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(AccessTokenKey), s.key(RefreshTokenKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
