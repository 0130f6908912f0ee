package app

import (
	"sync"
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

type limiterKey struct {
	room domain.RoomID
	user domain.UserID
}

// RoomRateLimiter is a sliding-window limiter per (room, user).
// A non-positive limit disables it.
type RoomRateLimiter struct {
	mu       sync.Mutex
	history  map[limiterKey][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		history:  make(map[limiterKey][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RoomRateLimiter) Allow(room domain.RoomID, uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	key := limiterKey{room: room, user: uid}

	attempts := rl.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// Forget drops all history of a room.
func (rl *RoomRateLimiter) Forget(room domain.RoomID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k := range rl.history {
		if k.room == room {
			delete(rl.history, k)
		}
	}
}
