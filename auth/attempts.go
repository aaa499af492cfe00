package auth

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultMaxFailedAttempts   = 5
	DefaultFailedAttemptWindow = 10 * time.Minute
)

// FailedAttemptTracker counts failed handshakes per remote address over a sliding window.
// Expired timestamps are pruned whenever an address is looked up, and an address left
// without any timestamp is forgotten, so there is no background sweep.
type FailedAttemptTracker struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	attempts map[string][]time.Time
}

func NewFailedAttemptTracker(limit int, window time.Duration) *FailedAttemptTracker {
	if limit <= 0 {
		limit = DefaultMaxFailedAttempts
	}
	if window <= 0 {
		window = DefaultFailedAttemptWindow
	}
	return &FailedAttemptTracker{
		limit:    limit,
		window:   window,
		attempts: make(map[string][]time.Time),
	}
}

// Blocked reports whether addr reached the limit inside the window ending at now.
func (t *FailedAttemptTracker) Blocked(addr string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.prune(addr, now)) >= t.limit
}

// Fail records a failed attempt and returns how many are live for addr.
func (t *FailedAttemptTracker) Fail(addr string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	live := append(t.prune(addr, now), now)
	t.attempts[addr] = live
	return len(live)
}

func (t *FailedAttemptTracker) Reset(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, addr)
}

// Tracked returns the number of addresses currently holding attempts.
func (t *FailedAttemptTracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

func (t *FailedAttemptTracker) prune(addr string, now time.Time) []time.Time {
	stamps, ok := t.attempts[addr]
	if !ok {
		return nil
	}
	cutoff := now.Add(-t.window)
	live := lo.Filter(stamps, func(at time.Time, _ int) bool {
		return at.After(cutoff)
	})
	if len(live) == 0 {
		delete(t.attempts, addr)
		return nil
	}
	t.attempts[addr] = live
	return live
}
