package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return New(client, "test", time.Minute, true), mr
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, "profile:42", payload{Name: "alice", Count: 3})

	var got payload
	if !c.Get(ctx, 1, "profile:42", &got) {
		t.Fatal("expected hit")
	}

	if got.Name != "alice" || got.Count != 3 {
		t.Fatalf("unexpected value: %+v", got)
	}

	if c.Get(ctx, 1, "profile:43", &got) {
		t.Fatal("expected miss for unknown key")
	}
}

func TestTenantIsolation(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, "settings", payload{Name: "one"})
	c.Set(ctx, 2, "settings", payload{Name: "two"})

	var got payload
	if !c.Get(ctx, 1, "settings", &got) || got.Name != "one" {
		t.Fatalf("tenant 1 read wrong value: %+v", got)
	}

	if !c.Get(ctx, 2, "settings", &got) || got.Name != "two" {
		t.Fatalf("tenant 2 read wrong value: %+v", got)
	}

	// Flushing tenant 1 leaves tenant 2 intact.
	c.DeleteTenant(ctx, 1)

	if c.Get(ctx, 1, "settings", &got) {
		t.Fatal("tenant 1 entry survived its flush")
	}

	if !c.Get(ctx, 2, "settings", &got) {
		t.Fatal("tenant 2 entry was destroyed by tenant 1's flush")
	}
}

func TestDeleteByTag(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, "user:1", payload{Name: "a"}, "users")
	c.Set(ctx, 1, "user:2", payload{Name: "b"}, "users")
	c.Set(ctx, 1, "role:1", payload{Name: "r"}, "roles")

	c.DeleteByTag(ctx, 1, "users")

	var got payload
	if c.Get(ctx, 1, "user:1", &got) || c.Get(ctx, 1, "user:2", &got) {
		t.Fatal("tagged entries survived invalidation")
	}

	if !c.Get(ctx, 1, "role:1", &got) {
		t.Fatal("unrelated tag was invalidated")
	}
}

func TestExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, "short", payload{Name: "x"})

	mr.FastForward(2 * time.Minute)

	var got payload
	if c.Get(ctx, 1, "short", &got) {
		t.Fatal("expected entry to expire")
	}
}

func TestFailSoft(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(client, "test", time.Minute, true)

	mr.Close()

	// A dead backend degrades to a permanent miss, never an error.
	c.Set(context.Background(), 1, "k", payload{Name: "x"})

	var got payload
	if c.Get(context.Background(), 1, "k", &got) {
		t.Fatal("expected miss with dead backend")
	}
}

func TestDisabled(t *testing.T) {
	c := New(nil, "test", time.Minute, false)

	c.Set(context.Background(), 1, "k", payload{Name: "x"})

	var got payload
	if c.Get(context.Background(), 1, "k", &got) {
		t.Fatal("disabled cache returned a hit")
	}
}
