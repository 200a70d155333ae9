package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer c.Close()

	if err := c.Raw().Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Connect(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Fatalf("expected error for closed server")
	}
}
