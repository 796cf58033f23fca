// Package redis holds the Redis-backed guest KV store and mutation event sink.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/go-redis/redis/v8"

	"insightboard/internal/domain"
)

// Options configures NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a client and verifies the server answers PING.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Unavailable("redis", err)
	}
	return err
}
