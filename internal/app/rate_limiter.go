package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkeye/Matchbox/internal/domain"
)

// RateLimiter is a sliding-window limiter keyed by profile.
type RateLimiter struct {
	clock    clockwork.Clock
	mu       sync.Mutex
	history  map[domain.ProfileID][]time.Time
	limit    int
	interval time.Duration
}

// NewRateLimiter allows limit events per interval; limit <= 0 disables it.
func NewRateLimiter(c clockwork.Clock, limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    c,
		history:  make(map[domain.ProfileID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(id domain.ProfileID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}
	rl.history[id] = append(fresh, now)
	return true
}

// Forget drops the history of id.
func (rl *RateLimiter) Forget(id domain.ProfileID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
