package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

// RoomRateLimiter is a sliding window of at most limit messages per interval per user.
// A user's budget is shared by all their devices.
type RoomRateLimiter struct {
	mu        sync.Mutex
	history   map[domain.UserID][]time.Time
	limit     int
	interval  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RoomRateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	rl.sweepLocked(now, windowStart)

	attempts := rl.history[uid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}
	rl.history[uid] = append(fresh, now)
	return true
}

// sweepLocked drops users with no attempt inside the window, at most once per window.
func (rl *RoomRateLimiter) sweepLocked(now, windowStart time.Time) {
	if now.Sub(rl.lastSweep) < rl.interval {
		return
	}
	rl.lastSweep = now
	for uid, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, uid)
		}
	}
}

func (rl *RoomRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
