package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestTokenDenylist_AddAndContains(t *testing.T) {
	client, server := newTestRedis(t)
	denylist := NewTokenDenylist(client, "denied")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	denylist.now = func() time.Time { return now }

	ctx := context.Background()
	revocation := domain.TokenRevocation{
		JTI:       "01HXJTI",
		SubjectID: "user-1",
		Reason:    "logout",
		RevokedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}

	added, err := denylist.Add(ctx, revocation)
	if err != nil || !added {
		t.Fatalf("expected first Add to insert, got %v err=%v", added, err)
	}
	added, err = denylist.Add(ctx, revocation)
	if err != nil || added {
		t.Fatalf("expected second Add to report an existing entry, got %v err=%v", added, err)
	}

	denied, err := denylist.Contains(ctx, "01HXJTI")
	if err != nil {
		t.Fatalf("Contains returned error: %v", err)
	}
	if !denied {
		t.Fatalf("expected jti to be denylisted")
	}

	remaining := server.TTL("denied:01HXJTI")
	if remaining <= 0 || remaining > 10*time.Minute {
		t.Fatalf("unexpected ttl %v", remaining)
	}

	server.FastForward(11 * time.Minute)

	denied, err = denylist.Contains(ctx, "01HXJTI")
	if err != nil {
		t.Fatalf("Contains returned error: %v", err)
	}
	if denied {
		t.Fatalf("expected jti to expire from the denylist")
	}
}

func TestTokenDenylist_SkipsExpiredRevocations(t *testing.T) {
	client, server := newTestRedis(t)
	denylist := NewTokenDenylist(client, "")

	now := time.Now()
	denylist.now = func() time.Time { return now }

	added, err := denylist.Add(context.Background(), domain.TokenRevocation{JTI: "old", ExpiresAt: now.Add(-time.Second)})
	if err != nil || added {
		t.Fatalf("expected expired revocation to be skipped, got %v err=%v", added, err)
	}
	if server.Exists(defaultDenylistPrefix + ":old") {
		t.Fatalf("expired revocation should not be stored")
	}
}

func TestTokenDenylist_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	denylist := NewTokenDenylist(client, "denied")

	if _, err := denylist.Add(context.Background(), domain.TokenRevocation{JTI: " ", ExpiresAt: time.Now().Add(time.Minute)}); err == nil {
		t.Fatalf("expected error for empty jti")
	}
	if _, err := denylist.Contains(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty jti in Contains")
	}
}

func TestRateLimitRepository_SlidingWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl", TTL: time.Minute})

	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	window := 30 * time.Second
	key := "auth_login_ip:203.0.113.9"

	for i, offset := range []time.Duration{0, 0, 10 * time.Second} {
		state, recorded, err := repo.Hit(ctx, key, window, 3, base.Add(offset))
		if err != nil {
			t.Fatalf("Hit %d returned error: %v", i, err)
		}
		if !recorded || state.Count != i+1 {
			t.Fatalf("hit %d: expected recorded attempt %d, got %+v recorded=%v", i, i+1, state, recorded)
		}
	}

	state, recorded, err := repo.Hit(ctx, key, window, 3, base.Add(20*time.Second))
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if recorded || state.Count != 3 {
		t.Fatalf("expected the fourth hit to be refused, got %+v recorded=%v", state, recorded)
	}
	if !state.Oldest.Equal(base) {
		t.Fatalf("expected oldest attempt %v, got %v", base, state.Oldest)
	}

	state, recorded, err = repo.Hit(ctx, key, window, 3, base.Add(35*time.Second))
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if !recorded || state.Count != 2 || !state.Oldest.Equal(base.Add(10*time.Second)) {
		t.Fatalf("expected the two oldest attempts to slide out, got %+v recorded=%v", state, recorded)
	}

	if ttl := server.TTL("rl:" + key); ttl <= 0 {
		t.Fatalf("expected key ttl to be set, got %v", ttl)
	}
}

func TestRateLimitRepository_RejectsInvalidRule(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if _, _, err := repo.Hit(context.Background(), "k", 0, 1, time.Now()); err == nil {
		t.Fatalf("expected error for zero window")
	}
	if _, _, err := repo.Hit(context.Background(), "k", time.Second, 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
