package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fractal-lba/nbeval/internal/pipeline"
)

// RedisStore implements Store using Redis SETNX for atomic first-write-wins.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store and checks the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, prefix: "nbeval:report:"}, nil
}

func (r *RedisStore) key(fingerprint string) string {
	return r.prefix + fingerprint
}

func (r *RedisStore) Get(ctx context.Context, fingerprint string) (*pipeline.Report, error) {
	data, err := r.client.Get(ctx, r.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var report pipeline.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

func (r *RedisStore) Put(ctx context.Context, fingerprint string, report *pipeline.Report, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return false, fmt.Errorf("failed to marshal report: %w", err)
	}

	// false means a concurrent writer already stored this fingerprint
	wasSet, err := r.client.SetNX(ctx, r.key(fingerprint), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX failed: %w", err)
	}

	return wasSet, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
