package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Local struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocal refills Limit tokens evenly over Window, with a burst of Limit.
func NewLocal(cfg Config) *Local {
	return &Local{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		every := l.cfg.Window / time.Duration(l.cfg.Limit)
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), l.cfg.Limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{RetryAfter: l.cfg.Window}, nil
	}

	if delay := r.DelayFrom(now); delay > 0 {
		// don't consume a token for a rejected request
		r.CancelAt(now)
		return Decision{RetryAfter: delay}, nil
	}

	return Decision{Allowed: true}, nil
}

// Prune forgets keys idle for longer than a window and returns how many it
// dropped. Their buckets are full again by then, so dropping them changes
// no decision.
func (l *Local) Prune() int {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Tracked counts the keys currently holding a bucket.
func (l *Local) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
