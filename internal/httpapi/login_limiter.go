package httpapi

import (
	"sync"
	"time"
)

const (
	defaultLoginAttempts = 10
	defaultLoginWindow   = 5 * time.Minute
)

// attemptLimiter counts login attempts per key over a sliding window.
type attemptLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	attempts map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max <= 0 {
		max = defaultLoginAttempts
	}
	if window <= 0 {
		window = defaultLoginWindow
	}
	return &attemptLimiter{
		window:   window,
		max:      max,
		attempts: make(map[string][]time.Time),
	}
}

// Allow records an attempt for every key and reports whether all of them were under the
// limit. A rejected call records nothing.
func (l *attemptLimiter) Allow(now time.Time, keys ...string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	for _, k := range keys {
		if len(l.prune(k, cutoff)) >= l.max {
			return false
		}
	}
	for _, k := range keys {
		l.attempts[k] = append(l.attempts[k], now)
	}
	return true
}

// Forget drops the history of key, e.g. after a successful login.
func (l *attemptLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
}

func (l *attemptLimiter) prune(key string, cutoff time.Time) []time.Time {
	ts := l.attempts[key]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, key)
		return nil
	}
	l.attempts[key] = kept
	return kept
}
