package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recipebox/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig configures the redis store.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // namespaces keys as <prefix>:<key>

	// Client, when set, is used instead of dialing Addr.
	Client *redis.Client
}

// RedisStore implements Store on top of redis string keys with native TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	client := cfg.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

// redisKey returns the namespaced redis key for key.
func (r *RedisStore) redisKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisStore) trimKey(redisKey string) string {
	if r.prefix == "" {
		return redisKey
	}
	return strings.TrimPrefix(redisKey, r.prefix+":")
}

// Set implements Store.Set. The entry expiry maps onto the redis key TTL;
// SameSite and Secure have no redis equivalent and are not stored.
func (r *RedisStore) Set(ctx context.Context, key, value string, opts SetOptions) error {
	var ttl time.Duration
	if !opts.Expires.IsZero() {
		ttl = time.Until(opts.Expires)
		if ttl <= 0 {
			return r.Remove(ctx, key)
		}
	}

	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	logging.Audit("CredentialStore", "credential_stored",
		slog.String("key", key),
		slog.String("backend", "redis"),
	)
	return nil
}

// Get implements Store.Get.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return value, true, nil
}

// Remove implements Store.Remove.
func (r *RedisStore) Remove(ctx context.Context, key string) error {
	deleted, err := r.client.Del(ctx, r.redisKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	if deleted > 0 {
		logging.Audit("CredentialStore", "credential_removed",
			slog.String("key", key),
			slog.String("backend", "redis"),
		)
	}
	return nil
}

// Keys implements Store.Keys.
func (r *RedisStore) Keys(ctx context.Context) ([]string, error) {
	redisKeys, err := r.scan(ctx, r.redisKey("*"))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(redisKeys))
	for _, k := range redisKeys {
		keys = append(keys, r.trimKey(k))
	}
	return keys, nil
}

// RemoveMatching implements Store.RemoveMatching.
func (r *RedisStore) RemoveMatching(ctx context.Context, prefix string) (int, error) {
	redisKeys, err := r.scan(ctx, r.redisKey(prefix)+"*")
	if err != nil {
		return 0, err
	}
	if len(redisKeys) == 0 {
		return 0, nil
	}

	deleted, err := r.client.Del(ctx, redisKeys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys from redis: %w", err)
	}
	logging.Audit("CredentialStore", "credentials_cleared",
		slog.String("prefix", prefix),
		slog.Int64("count", deleted),
		slog.String("backend", "redis"),
	)
	return int(deleted), nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan redis keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
