package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestKeyServerConfig(t *testing.T) {
	if got := KeyServerConfig(42); got != "server-config:42" {
		t.Fatalf("unexpected key %q", got)
	}
}

// exercise runs the common contract against any Cache implementation.
func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, KeyDefaultServer, []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, KeyDefaultServer)
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("get after set: %q ok=%v err=%v", v, ok, err)
	}

	// Value survives until explicitly invalidated (no TTL).
	if err := c.Invalidate(ctx, KeyDefaultServer, KeyActivePeers); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, KeyDefaultServer); ok {
		t.Fatal("value must be gone after invalidation")
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	src := []byte("abc")
	_ = c.Set(ctx, "k", src)
	src[0] = 'X'

	v, _, _ := c.Get(ctx, "k")
	if string(v) != "abc" {
		t.Fatalf("cache must not alias caller buffers, got %q", v)
	}
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exercise(t, NewRedis(client, "wgfleet"))

	// Keys are namespaced by prefix.
	c := NewRedis(client, "wgfleet")
	_ = c.Set(context.Background(), "k", []byte("v"))
	if !mr.Exists("wgfleet:k") {
		t.Fatal("expected prefixed key in redis")
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, "")
	mr.Close()

	if err := c.Set(context.Background(), "k", []byte("v")); err == nil {
		t.Fatal("expected error from dead redis")
	}
	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected error from dead redis")
	}
}

// erroring is a Cache that always fails — for the best-effort wrapper.
type erroring struct{}

func (erroring) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (erroring) Set(context.Context, string, []byte) error   { return errors.New("cache down") }
func (erroring) Invalidate(context.Context, ...string) error { return errors.New("cache down") }

func TestBestEffortSwallowsErrors(t *testing.T) {
	b := NewBestEffort(erroring{})
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("best-effort get must degrade to a miss: ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("best-effort set must not propagate: %v", err)
	}
	if err := b.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("best-effort invalidate must not propagate: %v", err)
	}
}
