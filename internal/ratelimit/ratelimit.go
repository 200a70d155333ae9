// Package ratelimit throttles requests per client key. Local keeps token
// buckets in process; Redis shares a sliding window across instances.
package ratelimit

import (
	"context"
	"time"
)

type Decision struct {
	Allowed bool
	// RetryAfter is set when Allowed is false.
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config allows Limit requests per Window and key.
type Config struct {
	Limit  int
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}
