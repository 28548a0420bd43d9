package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the optional redis connection used by the Redis-backed
// rate limiter and reported on the health endpoint. The app runs fine
// without it; callers check Healthy before relying on it.
type Redis struct {
	Client *redis.Client
}

// NewRedis dials redis at addr with short timeouts so an absent server
// does not stall startup or request handling.
func NewRedis(addr string) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}
}

// Healthy reports whether redis answers a ping.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
