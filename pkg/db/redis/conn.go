package redis

import (
	"crypto/tls"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
)

// NewRedisClient connects the wake list and progress cache client.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	addr := cfg.Redis.RedisAddr
	if addr == "" {
		addr = ":6379"
	}

	opts := &redis.Options{
		Addr:         addr,
		Password:     cfg.Redis.RedisPassword,
		DB:           cfg.Redis.DB,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolSize:     cfg.Redis.PoolSize,
		PoolTimeout:  time.Duration(cfg.Redis.PoolTimeout) * time.Second,
	}
	if cfg.Redis.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(client.Context()).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to ping redis")
	}
	return client, nil
}
