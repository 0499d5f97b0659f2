package port

import (
	"context"
	"time"
)

// RateWindow is the state of one sliding window after a hit.
type RateWindow struct {
	// Count is the number of attempts inside the window, including the hit when it was recorded.
	Count int
	// Oldest is the earliest attempt still inside the window; zero when the window is empty.
	Oldest time.Time
}

// RateLimitStore keeps sliding-window attempt logs.
type RateLimitStore interface {
	// Hit drops attempts older than window and records at only while fewer than limit remain.
	// The boolean reports whether the attempt was recorded.
	Hit(ctx context.Context, key string, window time.Duration, limit int, at time.Time) (RateWindow, bool, error)
}
