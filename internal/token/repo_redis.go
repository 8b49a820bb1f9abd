package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	keyCredential = "voicebridge:access_token"
	keyPushToken  = "voicebridge:push_token"
)

// RedisRepo is the durable Repository backed by redis. It fills the role the
// mobile platforms cover with their key-value preference stores.
type RedisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo { return &RedisRepo{rdb: rdb} }

func (r *RedisRepo) SaveCredential(ctx context.Context, value string) error {
	// No TTL: the expiry claim inside the credential governs validity; the
	// store discards expired values on read.
	if err := r.rdb.Set(ctx, keyCredential, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set credential: %w", err)
	}
	return nil
}

func (r *RedisRepo) LoadCredential(ctx context.Context) (string, error) {
	v, err := r.rdb.Get(ctx, keyCredential).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get credential: %w", err)
	}
	return v, nil
}

func (r *RedisRepo) SavePushToken(ctx context.Context, value string) error {
	if err := r.rdb.Set(ctx, keyPushToken, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set push token: %w", err)
	}
	return nil
}

func (r *RedisRepo) LoadPushToken(ctx context.Context) (string, error) {
	v, err := r.rdb.Get(ctx, keyPushToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get push token: %w", err)
	}
	return v, nil
}

func (r *RedisRepo) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, keyCredential, keyPushToken).Err(); err != nil {
		return fmt.Errorf("redis clear tokens: %w", err)
	}
	return nil
}
