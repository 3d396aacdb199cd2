package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lox/twentyone/internal/game"
)

const redisKeyPrefix = "twentyone:session:"

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps sessions in Redis so several processes can share
// them. Expiry rides on the key TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies the server is reachable.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (game.State, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.State{}, false, nil
	}
	if err != nil {
		return game.State{}, false, fmt.Errorf("session: redis get: %w", err)
	}

	var st game.State
	if err := json.Unmarshal(data, &st); err != nil {
		return game.State{}, false, fmt.Errorf("session: decode state: %w", err)
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, st game.State, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
