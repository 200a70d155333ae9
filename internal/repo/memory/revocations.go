package memory

import (
	"context"
	"time"

	"github.com/DannyIGuesss/el-frijolito-site/internal/cache"
)

// Revocations keeps logged-out session ids in process. Used when redis is
// not configured; a restart forgets them, which only matters for tokens
// that were explicitly logged out and have not expired yet.
type Revocations struct {
	c *cache.Cache
}

func NewRevocations(c *cache.Cache) *Revocations {
	if c == nil {
		c = cache.New(0)
	}
	return &Revocations{c: c}
}

func (r *Revocations) Revoke(_ context.Context, jti string, until time.Time) error {
	r.c.SetUntil(jti, struct{}{}, until)
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := r.c.Get(jti)
	return ok, nil
}

// Sweep drops expired ids. cmd/api calls it on a ticker.
func (r *Revocations) Sweep() int {
	return r.c.Sweep()
}
