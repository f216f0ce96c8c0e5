// Package redisx builds the Redis client and provides the JSON cache used by
// the catalog and cart services. Redis is optional: when no URL is configured
// the services run uncached.
package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// Options control client construction. Pointer fields override the client
// defaults only when set.
type Options struct {
	URL                string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	EnableOTel         bool
}

// NewClient parses the URL, applies overrides, optionally instruments the
// client with OpenTelemetry, and verifies connectivity with a ping.
func NewClient(ctx context.Context, o Options) (*redis.Client, error) {
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, err
	}
	if o.DialTimeout != nil {
		opts.DialTimeout = *o.DialTimeout
	}
	if o.ReadTimeout != nil {
		opts.ReadTimeout = *o.ReadTimeout
	}
	if o.WriteTimeout != nil {
		opts.WriteTimeout = *o.WriteTimeout
	}
	if o.PoolSize != nil {
		opts.PoolSize = *o.PoolSize
	}
	if o.MinIdleConns != nil {
		opts.MinIdleConns = *o.MinIdleConns
	}
	if o.MaxRetries != nil {
		opts.MaxRetries = *o.MaxRetries
	}

	client := redis.NewClient(opts)
	if o.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	if o.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, o.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
