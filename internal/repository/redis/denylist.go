package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
)

const defaultDenylistPrefix = "vetflow:denylist"

// TokenDenylist keeps invalidated token ids in Redis; keys expire with the revocation.
type TokenDenylist struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewTokenDenylist wires a Redis client into a token denylist.
func NewTokenDenylist(client *red.Client, keyPrefix string) *TokenDenylist {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultDenylistPrefix
	}

	return &TokenDenylist{client: client, prefix: prefix, now: time.Now}
}

// Add stores the jti until the revocation expires. SET NX makes the insert atomic, so only one
// of several concurrent callers sees true. Expired revocations are ignored.
func (d *TokenDenylist) Add(ctx context.Context, revocation domain.TokenRevocation) (bool, error) {
	key := d.key(revocation.JTI)
	if key == "" {
		return false, errors.New("jti must not be empty")
	}

	ttl := revocation.TTL(d.now())
	if ttl <= 0 {
		return false, nil
	}

	added, err := d.client.SetNX(ctx, key, revocation.Reason, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis set denylisted jti: %w", err)
	}
	return added, nil
}

// Contains reports whether the jti is denylisted.
func (d *TokenDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	key := d.key(jti)
	if key == "" {
		return false, errors.New("jti must not be empty")
	}

	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists denylisted jti: %w", err)
	}
	return n > 0, nil
}

func (d *TokenDenylist) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", d.prefix, trimmed)
}

var _ port.TokenDenylist = (*TokenDenylist)(nil)
