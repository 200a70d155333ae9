package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func TestLocal_AllowsBurstThenThrottles(t *testing.T) {
	now := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	l := NewLocal(Config{Limit: 3, Window: time.Minute})
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d", i+1)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(20*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	// other clients keep their own bucket
	d, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, d.Allowed)

	now = now.Add(21 * time.Second)
	d, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, d.Allowed, "one token refilled")
}

func TestLocal_Prune(t *testing.T) {
	now := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	l := NewLocal(Config{Limit: 1, Window: time.Minute})
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	_, _ = l.Allow(context.Background(), "b")

	assert.Equal(t, 1, l.Prune(), "only the idle key is dropped")
	assert.Equal(t, 1, l.Tracked())
	assert.Equal(t, 0, l.Prune())
}

func TestRedis_SlidingWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	now := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)

	r := NewRedis(client, Config{Limit: 2, Window: time.Minute}, "test")
	r.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := r.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	now = now.Add(10 * time.Second)
	d, _ = r.Allow(ctx, "1.2.3.4")
	require.True(t, d.Allowed)

	now = now.Add(10 * time.Second)
	d, err = r.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	// oldest attempt leaves the window 40s from now
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	count, err := client.ZCard(ctx, "test:1.2.3.4").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "rejected attempts are not recorded")

	now = now.Add(41 * time.Second)
	d, _ = r.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
}

func TestRedis_Unavailable(t *testing.T) {
	client, server := newTestRedis(t)
	server.Close()

	_, err := NewRedis(client, Config{}, "").Allow(context.Background(), "k")
	assert.Error(t, err)
}
