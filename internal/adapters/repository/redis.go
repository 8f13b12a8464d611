package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/metrics"
)

const backendRedis = "redis"

// RedisStore mirrors the snapshot into Redis so several replicas serve the
// same catalog. The whole document lives under key and each item is also
// stored in the hash key+":items" for point lookups.
type RedisStore struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	s := NewRedisStoreFromClient(client, opts...)

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		key:     defaultRedisKey,
		timeout: defaultRedisTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) itemsKey() string { return s.key + ":items" }

// Replace writes snap and its item hash in one transaction.
func (s *RedisStore) Replace(ctx context.Context, snap Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	fields := make(map[string]interface{}, len(snap.Items))
	for _, it := range snap.Items {
		b, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", it.ID, err)
		}
		fields[it.ID] = b
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.itemsKey())
		if len(fields) > 0 {
			pipe.HSet(ctx, s.itemsKey(), fields)
		}
		pipe.Set(ctx, s.key, doc, 0)
		return nil
	})
	if err != nil {
		metrics.RecordStoreError(backendRedis)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	metrics.RecordStoreReplace(backendRedis)
	return nil
}

// Snapshot reads and decodes the current document.
func (s *RedisStore) Snapshot(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	defer observeRead(backendRedis, start)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	b, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		metrics.RecordStoreError(backendRedis)
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		metrics.RecordStoreError(backendRedis)
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Get reads one item from the hash.
func (s *RedisStore) Get(ctx context.Context, id string) (model.EnrichedItem, error) {
	start := time.Now()
	defer observeRead(backendRedis, start)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	b, err := s.client.HGet(ctx, s.itemsKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		n, existsErr := s.client.Exists(ctx, s.key).Result()
		if existsErr == nil && n == 0 {
			return model.EnrichedItem{}, ErrNoSnapshot
		}
		return model.EnrichedItem{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError(backendRedis)
		return model.EnrichedItem{}, fmt.Errorf("read item %s: %w", id, err)
	}
	var it model.EnrichedItem
	if err := json.Unmarshal(b, &it); err != nil {
		metrics.RecordStoreError(backendRedis)
		return model.EnrichedItem{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	return it, nil
}

// Count returns the size of the item hash, or 0 on error.
func (s *RedisStore) Count(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.HLen(ctx, s.itemsKey()).Result()
	if err != nil {
		metrics.RecordStoreError(backendRedis)
		return 0
	}
	return int(n)
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
