package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jebauza/VetFlow/internal/core/port"
)

// slidingWindowHit trims, conditionally records and reports the window in one round trip.
// KEYS[1] window key
// ARGV[1] exclusive lower score bound, ARGV[2] score of the hit, ARGV[3] limit,
// ARGV[4] member, ARGV[5] key ttl in milliseconds.
var slidingWindowHit = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
local recorded = 0
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
  count = count + 1
  recorded = 1
end
if tonumber(ARGV[5]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local score = ''
if oldest[2] then
  score = oldest[2]
end
return {recorded, count, score}
`)

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// RateLimitRepository keeps attempt logs in Redis sorted sets scored by unix milliseconds.
type RateLimitRepository struct {
	client *redis.Client
	cfg    SlidingWindowConfig
	seq    atomic.Uint64
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *redis.Client, cfg SlidingWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// Hit runs the sliding-window script for key.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration, limit int, at time.Time) (port.RateWindow, bool, error) {
	if window <= 0 || limit <= 0 {
		return port.RateWindow{}, false, errors.New("rate limit window and limit must be positive")
	}

	// Concurrent hits in the same millisecond must stay distinct members.
	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)
	ttl := r.cfg.TTL
	if ttl <= 0 {
		ttl = window
	}

	raw, err := slidingWindowHit.Run(ctx, r.client, []string{r.key(key)},
		"("+strconv.FormatInt(at.Add(-window).UnixMilli(), 10),
		strconv.FormatInt(at.UnixMilli(), 10),
		limit,
		member,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return port.RateWindow{}, false, fmt.Errorf("redis sliding window: %w", err)
	}

	return parseWindow(raw)
}

func parseWindow(raw []any) (port.RateWindow, bool, error) {
	if len(raw) != 3 {
		return port.RateWindow{}, false, fmt.Errorf("redis sliding window: unexpected reply %v", raw)
	}
	recorded, _ := raw[0].(int64)
	count, _ := raw[1].(int64)

	out := port.RateWindow{Count: int(count)}
	if score, _ := raw[2].(string); score != "" {
		ms, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return port.RateWindow{}, false, fmt.Errorf("redis sliding window: parse score %q: %w", score, err)
		}
		out.Oldest = time.UnixMilli(int64(ms)).UTC()
	}
	return out, recorded == 1, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return r.cfg.KeyPrefix + ":" + identifier
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
