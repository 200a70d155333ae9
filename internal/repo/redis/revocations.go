package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "session:revoked"

// Revocations is the shared session denylist. Each revoked token id is a key
// that expires together with the token.
type Revocations struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

func NewRevocations(client *red.Client, keyPrefix string) *Revocations {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &Revocations{client: client, prefix: prefix, now: time.Now}
}

// Revoke stores jti until the token's own expiry. Already expired tokens
// need no entry.
func (r *Revocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	key := r.key(jti)
	if key == "" {
		return errors.New("token id is required")
	}

	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revocation: %w", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key := r.key(jti)
	if key == "" {
		return false, errors.New("token id is required")
	}

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revocation: %w", err)
	}
	return n > 0, nil
}

func (r *Revocations) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return r.prefix + ":" + trimmed
}
