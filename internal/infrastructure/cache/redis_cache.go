package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/capture"
)

const (
	cacheVersion      = "v1"
	recentCapturesKey = "vision:" + cacheVersion + ":captures:recent"
)

// RedisCache keeps the recent captures list and provides cross-instance locks.
type RedisCache struct {
	client  redis.UniversalClient
	rs      *redsync.Redsync
	maxSize int64
	log     zerolog.Logger
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, redisURL string, maxSize int, log zerolog.Logger) (*RedisCache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := log.With().Str("component", "redis-cache").Logger()
	logger.Info().Msg("connected to redis")
	return newRedisCache(client, maxSize, logger), nil
}

func newRedisCache(client redis.UniversalClient, maxSize int, log zerolog.Logger) *RedisCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &RedisCache{
		client:  client,
		rs:      redsync.New(goredis.NewPool(client)),
		maxSize: int64(maxSize),
		log:     log,
	}
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}

		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no redis addresses provided")
	}
	if len(opts.Addrs) > 1 {
		opts.DB = 0
	}
	return opts, nil
}

// Push prepends a record and trims the list to its maximum size.
func (r *RedisCache) Push(ctx context.Context, record capture.Record) error {
	record.History = nil
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentCapturesKey, payload)
	pipe.LTrim(ctx, recentCapturesKey, 0, r.maxSize-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit records, newest first.
func (r *RedisCache) Recent(ctx context.Context, limit int) ([]capture.Record, error) {
	if limit <= 0 || int64(limit) > r.maxSize {
		limit = int(r.maxSize)
	}

	values, err := r.client.LRange(ctx, recentCapturesKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent captures: %w", err)
	}

	records := make([]capture.Record, 0, len(values))
	for _, raw := range values {
		var rec capture.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			r.log.Warn().Err(err).Msg("skipping malformed cached capture")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WithLock runs fn while holding a redis mutex.
func (r *RedisCache) WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error {
	mutex := r.rs.NewMutex("vision:lock:"+name, redsync.WithExpiry(ttl))
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			r.log.Error().Err(err).Str("lock", name).Msg("failed to unlock mutex")
		}
	}()
	return fn()
}

// HealthCheck pings the server.
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
