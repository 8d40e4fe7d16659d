package authcore

import (
	"sync"
	"time"
)

// attemptDecision is the outcome of a limiter check.
type attemptDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type loginAttemptRecord struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// loginAttemptLimiter is the sliding-window + cooldown limiter guarding
// the credential step, keyed by normalized email. It lives in process
// memory only: under horizontal scaling each warm instance carries its
// own budget, which is an accepted trade-off: cross-instance
// correctness comes from routing through the distributed verify limiter,
// not from persisting this one.
type loginAttemptLimiter struct {
	mu      sync.Mutex
	entries map[string]*loginAttemptRecord
	ops     int

	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

const loginSweepEvery = 128

func newLoginAttemptLimiter(cfg LoginConfig) *loginAttemptLimiter {
	return &loginAttemptLimiter{
		entries:     make(map[string]*loginAttemptRecord),
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		block:       cfg.BlockDuration,
		now:         time.Now,
	}
}

// Check reports whether key may attempt a login. An active block takes
// precedence over window expiry: a fresh window never overrides a
// running cooldown.
func (l *loginAttemptLimiter) Check(key string) attemptDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, ok := l.entries[key]
	if !ok {
		return attemptDecision{Allowed: true, Remaining: l.maxAttempts}
	}

	if record.blockedUntil.After(now) {
		return attemptDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: record.blockedUntil.Sub(now),
		}
	}

	if now.Sub(record.windowStart) >= l.window {
		return attemptDecision{Allowed: true, Remaining: l.maxAttempts}
	}

	remaining := l.maxAttempts - record.count
	if remaining <= 0 {
		// Window quota spent but the block has lapsed; treat the next
		// increment as a fresh window.
		return attemptDecision{Allowed: true, Remaining: l.maxAttempts}
	}
	return attemptDecision{Allowed: true, Remaining: remaining}
}

// Increment records a failed attempt for key, entering the block state
// once the window quota is exhausted.
func (l *loginAttemptLimiter) Increment(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, ok := l.entries[key]
	if !ok {
		record = &loginAttemptRecord{windowStart: now}
		l.entries[key] = record
	}

	// A lapsed block grants the fresh window Check promised, even when
	// BlockDuration is shorter than the window itself.
	if !record.blockedUntil.After(now) &&
		(now.Sub(record.windowStart) >= l.window || record.count >= l.maxAttempts) {
		record.count = 0
		record.windowStart = now
		record.blockedUntil = time.Time{}
	}

	record.count++
	if record.count >= l.maxAttempts {
		record.blockedUntil = now.Add(l.block)
	}

	l.sweepLocked(now)
}

// Reset clears all counters for key. Called only after a fully
// successful login (password and PIN).
func (l *loginAttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// sweepLocked garbage-collects entries whose window has lapsed and that
// are not currently blocking, every loginSweepEvery increments.
func (l *loginAttemptLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops < loginSweepEvery {
		return
	}
	l.ops = 0

	for key, record := range l.entries {
		if record.blockedUntil.After(now) {
			continue
		}
		if now.Sub(record.windowStart) >= l.window {
			delete(l.entries, key)
		}
	}
}
