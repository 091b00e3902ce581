package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	InitRedis(context.Background(), mr.Addr())
	if Client == nil {
		t.Fatal("expected package client to be set")
	}

	ctx := context.Background()
	if err := Client.Set(ctx, "k", "v", time.Minute).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := Client.Get(ctx, "k").Result()
	if err != nil || got != "v" {
		t.Fatalf("get: %q, %v", got, err)
	}
}
