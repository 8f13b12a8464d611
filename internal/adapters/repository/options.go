package repository

import "time"

const (
	defaultRedisKey     = "restock:catalog"
	defaultRedisTimeout = 2 * time.Second
)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKey sets the key prefix the snapshot is stored under.
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTimeout bounds each Redis round trip.
func WithTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}
