package config

// Redis backs the occupancy cache, the request rate limiter and the asynq
// cleanup scheduler. Connection parameters come from the environment. When
// the initial ping fails the constructor returns nil and callers degrade
// gracefully: caching and rate limiting are disabled, and the worker refuses
// to start.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAddr resolves the Redis address from REDIS_HOST/REDIS_PORT or
// REDIS_ADDR, defaulting to localhost:6379. Exported so the asynq worker can
// build its own client options from the same variables.
func RedisAddr() string {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// RedisPassword returns the optional Redis password.
func RedisPassword() string { return os.Getenv("REDIS_PASSWORD") }

// RedisDB returns the Redis database number (default 0).
func RedisDB() int {
	if s := os.Getenv("REDIS_DB"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

// NewRedisClient instantiates a Redis client from the environment and pings
// it with a short timeout. The returned client is nil when the server is
// unreachable.
func NewRedisClient() *redis.Client {
	var tlsConf *tls.Config
	if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      RedisAddr(),
		Password:  RedisPassword(),
		DB:        RedisDB(),
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
