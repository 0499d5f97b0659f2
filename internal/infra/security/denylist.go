package security

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
)

// MemoryDenylistOptions controls in-memory denylist behaviour.
type MemoryDenylistOptions struct {
	// MaxEntries caps the map size; the entries closest to expiry are evicted first. Zero disables the cap.
	MaxEntries int
}

type denylistEntry struct {
	ExpiresAt time.Time
}

// MemoryDenylist keeps revoked token ids in process memory until they expire.
type MemoryDenylist struct {
	mu         sync.RWMutex
	entries    map[string]denylistEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryDenylist constructs an empty in-memory denylist.
func NewMemoryDenylist(opts MemoryDenylistOptions) *MemoryDenylist {
	return &MemoryDenylist{
		entries:    make(map[string]denylistEntry),
		maxEntries: opts.MaxEntries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic testing.
func (d *MemoryDenylist) WithClock(clock func() time.Time) *MemoryDenylist {
	if clock != nil {
		d.mu.Lock()
		d.now = clock
		d.mu.Unlock()
	}
	return d
}

// Add records a revoked jti until its expiry and reports whether it was not already tracked.
// Already expired revocations are ignored.
func (d *MemoryDenylist) Add(_ context.Context, revocation domain.TokenRevocation) (bool, error) {
	jti := strings.TrimSpace(revocation.JTI)
	if jti == "" {
		return false, errors.New("jti is required")
	}

	now := d.currentTime()
	if revocation.IsExpired(now) {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.entries[jti]
	if exists && entry.ExpiresAt.After(now) {
		return false, nil
	}
	if !exists && d.maxEntries > 0 && len(d.entries) >= d.maxEntries {
		d.evictSoonestLocked(len(d.entries) - d.maxEntries + 1)
	}
	d.entries[jti] = denylistEntry{ExpiresAt: revocation.ExpiresAt.UTC()}
	return true, nil
}

// Contains reports whether jti is revoked and its entry has not expired yet.
func (d *MemoryDenylist) Contains(_ context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, errors.New("jti is required")
	}

	now := d.currentTime()
	d.mu.RLock()
	entry, ok := d.entries[jti]
	d.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !entry.ExpiresAt.After(now) {
		d.mu.Lock()
		delete(d.entries, jti)
		d.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Len returns the number of tracked entries, expired ones included until the next prune.
func (d *MemoryDenylist) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Prune removes entries whose expiry is at or before now and returns how many were dropped.
func (d *MemoryDenylist) Prune(now time.Time) int {
	cutoff := now.UTC()

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, entry := range d.entries {
		if !entry.ExpiresAt.After(cutoff) {
			delete(d.entries, key)
			removed++
		}
	}
	return removed
}

// Run prunes expired entries every interval until ctx is cancelled.
func (d *MemoryDenylist) Run(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := d.Prune(d.currentTime()); removed > 0 {
				logger.Debug("pruned token denylist", zap.Int("removed", removed), zap.Int("remaining", d.Len()))
			}
		}
	}
}

func (d *MemoryDenylist) currentTime() time.Time {
	d.mu.RLock()
	nowFn := d.now
	d.mu.RUnlock()
	return nowFn().UTC()
}

func (d *MemoryDenylist) evictSoonestLocked(count int) {
	if count <= 0 || len(d.entries) == 0 {
		return
	}
	type item struct {
		key string
		exp time.Time
	}
	values := make([]item, 0, len(d.entries))
	for key, entry := range d.entries {
		values = append(values, item{key: key, exp: entry.ExpiresAt})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].exp.Before(values[j].exp) })
	if count > len(values) {
		count = len(values)
	}
	for i := 0; i < count; i++ {
		delete(d.entries, values[i].key)
	}
}

var _ port.TokenDenylist = (*MemoryDenylist)(nil)
