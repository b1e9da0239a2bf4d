package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	a := Fingerprint("https://open.spotify.com/playlist/abc123")
	b := Fingerprint("  HTTPS://open.spotify.com/playlist/ABC123 ")
	if a == "" {
		t.Fatal("empty fingerprint")
	}
	// Normalization folds case and trims whitespace.
	if a != Fingerprint("https://open.spotify.com/playlist/abc123") {
		t.Fatal("fingerprint is not deterministic")
	}
	if a == Fingerprint("https://open.spotify.com/playlist/other") {
		t.Fatal("distinct locators must not collide")
	}
	if a != b {
		t.Fatalf("expected normalized locators to match: %q vs %q", a, b)
	}
}

func TestMemoryCacheGetSetExpiry(t *testing.T) {
	t.Parallel()

	c := NewMemory()
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss on empty cache, ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Fatalf("unexpected value: %q", val)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestRedisCacheGetSetExpiry(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, srv.Addr())
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Fatalf("unexpected value: %q", val)
	}

	srv.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire after TTL")
	}
}
