package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a Store backed by a shared Redis instance. Keys are namespaced so
// multiple deployments can share one database.
type Redis struct {
	client    *redis.Client
	namespace string
	logger    *slog.Logger
}

// NewRedis connects to the Redis instance at url (redis://host:port/db) and
// verifies the connection with a ping. Keys are prefixed with namespace.
func NewRedis(url, namespace string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}, nil
}

func (r *Redis) key(k string) string {
	return r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		// Treat a failing cache as a miss.
		r.logger.Warn("redis cache get failed", slog.String("error", err.Error()))
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", slog.String("error", err.Error()))
	}
}

func (r *Redis) Flush(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.namespace+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("redis cache scan failed", slog.String("error", err.Error()))
		return
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.logger.Warn("redis cache flush failed", slog.String("error", err.Error()))
		}
	}
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
