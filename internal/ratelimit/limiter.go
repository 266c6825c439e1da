// Package ratelimit provides a process-local fixed-window attempt counter
// used to throttle credential and verification attempts. It holds no
// persistence guarantee and resets on restart; it is a defense-in-depth
// throttle, not a security boundary of record.
package ratelimit

import (
	"sync"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts attempts per key within a fixed window. The key set is
// bounded: expired entries are swept when the map is full, and if the map
// is still full the entry closest to expiry is evicted.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	maxKeys int
}

func New(limit int, window time.Duration, maxKeys int) *Limiter {
	if maxKeys <= 0 {
		maxKeys = 10_000
	}
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		maxKeys: maxKeys,
	}
}

// Allow records one attempt for key and reports whether it is within the
// window's limit.
func (l *Limiter) Allow(key string) bool {
	now := NowTimeFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if ok && now.Before(e.resetAt) {
		if e.count >= l.limit {
			return false
		}
		e.count++
		return true
	}

	if !ok && len(l.entries) >= l.maxKeys {
		l.evict(now)
	}

	l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
	return true
}

// Remaining reports how many attempts are left for key in the current
// window.
func (l *Limiter) Remaining(key string) int {
	now := NowTimeFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		return l.limit
	}
	if e.count >= l.limit {
		return 0
	}
	return l.limit - e.count
}

// evict drops expired entries, falling back to the entry closest to its
// reset deadline when nothing has expired. Caller holds the lock.
func (l *Limiter) evict(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
			continue
		}
		if oldestKey == "" || e.resetAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.resetAt
		}
	}
	if len(l.entries) >= l.maxKeys && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}
