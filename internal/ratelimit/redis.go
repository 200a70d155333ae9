package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit:login"

// Redis keeps one sorted set of attempt timestamps (unix millis) per key.
// Only allowed attempts stay in the window.
type Redis struct {
	client *redis.Client
	cfg    Config
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, cfg Config, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Redis{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: keyPrefix,
		now:    time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	k := r.prefix + ":" + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-r.cfg.Window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", "("+cutoff)
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = p.ZCard(ctx, k)
		p.Expire(ctx, k, r.cfg.Window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}

	if card.Val() <= int64(r.cfg.Limit) {
		return Decision{Allowed: true}, nil
	}

	if err := r.client.ZRem(ctx, k, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("redis zrem: %w", err)
	}

	oldest, err := r.client.ZRangeWithScores(ctx, k, 0, 0).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis zrange: %w", err)
	}

	retry := r.cfg.Window
	if len(oldest) > 0 {
		retry = time.UnixMilli(int64(oldest[0].Score)).Add(r.cfg.Window).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
	}

	return Decision{RetryAfter: retry}, nil
}
