package authcore

import (
	"testing"
	"time"
)

func newTestLimiter(cfg LoginConfig) (*loginAttemptLimiter, *time.Time) {
	limiter := newLoginAttemptLimiter(cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestLoginLimiterAllowsFreshKey(t *testing.T) {
	limiter, _ := newTestLimiter(LoginConfig{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute})

	decision := limiter.Check("user@example.com")
	if !decision.Allowed {
		t.Fatal("expected fresh key to be allowed")
	}
	if decision.Remaining != 5 {
		t.Fatalf("expected 5 remaining, got %d", decision.Remaining)
	}
}

func TestLoginLimiterBlocksAfterMaxAttempts(t *testing.T) {
	limiter, _ := newTestLimiter(LoginConfig{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute})

	for i := 0; i < 5; i++ {
		limiter.Increment("user@example.com")
	}

	decision := limiter.Check("user@example.com")
	if decision.Allowed {
		t.Fatal("expected key to be blocked after max attempts")
	}
	if decision.RetryAfter != 30*time.Minute {
		t.Fatalf("expected 30m retry-after, got %s", decision.RetryAfter)
	}
}

func TestLoginLimiterRemainingCountsDown(t *testing.T) {
	limiter, _ := newTestLimiter(LoginConfig{MaxAttempts: 3, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute})

	limiter.Increment("user@example.com")
	limiter.Increment("user@example.com")

	decision := limiter.Check("user@example.com")
	if !decision.Allowed {
		t.Fatal("expected key to still be allowed")
	}
	if decision.Remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", decision.Remaining)
	}
}

func TestLoginLimiterBlockOutlivesWindow(t *testing.T) {
	limiter, now := newTestLimiter(LoginConfig{MaxAttempts: 2, Window: 1 * time.Minute, BlockDuration: 30 * time.Minute})

	limiter.Increment("user@example.com")
	limiter.Increment("user@example.com")

	// Window has long expired but the block is still running.
	*now = now.Add(5 * time.Minute)

	decision := limiter.Check("user@example.com")
	if decision.Allowed {
		t.Fatal("expected active block to take precedence over expired window")
	}
	if decision.RetryAfter != 25*time.Minute {
		t.Fatalf("expected 25m retry-after, got %s", decision.RetryAfter)
	}
}

func TestLoginLimiterRecoversAfterBlock(t *testing.T) {
	limiter, now := newTestLimiter(LoginConfig{MaxAttempts: 2, Window: 1 * time.Minute, BlockDuration: 10 * time.Minute})

	limiter.Increment("user@example.com")
	limiter.Increment("user@example.com")

	*now = now.Add(10*time.Minute + time.Second)

	decision := limiter.Check("user@example.com")
	if !decision.Allowed {
		t.Fatal("expected key to be allowed after block expiry")
	}
	if decision.Remaining != 2 {
		t.Fatalf("expected full budget after block expiry, got %d", decision.Remaining)
	}
}

func TestLoginLimiterShortBlockGrantsFreshWindow(t *testing.T) {
	limiter, now := newTestLimiter(LoginConfig{MaxAttempts: 2, Window: 15 * time.Minute, BlockDuration: 1 * time.Minute})

	limiter.Increment("user@example.com")
	limiter.Increment("user@example.com")

	// Block lapsed, window still live.
	*now = now.Add(2 * time.Minute)

	decision := limiter.Check("user@example.com")
	if !decision.Allowed || decision.Remaining != 2 {
		t.Fatalf("expected full budget after block expiry, got %+v", decision)
	}

	// The first post-block failure counts against the promised fresh
	// window instead of re-blocking off the spent one.
	limiter.Increment("user@example.com")
	decision = limiter.Check("user@example.com")
	if !decision.Allowed {
		t.Fatal("expected one failure in the fresh window to stay allowed")
	}
	if decision.Remaining != 1 {
		t.Fatalf("expected 1 remaining in fresh window, got %d", decision.Remaining)
	}
}

func TestLoginLimiterWindowExpiryResetsBudget(t *testing.T) {
	limiter, now := newTestLimiter(LoginConfig{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute})

	limiter.Increment("user@example.com")
	limiter.Increment("user@example.com")

	*now = now.Add(15*time.Minute + time.Second)

	decision := limiter.Check("user@example.com")
	if !decision.Allowed || decision.Remaining != 5 {
		t.Fatalf("expected full budget after window expiry, got %+v", decision)
	}

	// The next increment starts a fresh window rather than stacking on
	// the stale count.
	limiter.Increment("user@example.com")
	decision = limiter.Check("user@example.com")
	if decision.Remaining != 4 {
		t.Fatalf("expected 4 remaining in fresh window, got %d", decision.Remaining)
	}
}

func TestLoginLimiterResetClearsEverything(t *testing.T) {
	limiter, _ := newTestLimiter(LoginConfig{MaxAttempts: 2, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute})

	limiter.Increment("user@example.com")
	limiter.Increment("user@example.com")
	if limiter.Check("user@example.com").Allowed {
		t.Fatal("expected blocked key before reset")
	}

	limiter.Reset("user@example.com")

	decision := limiter.Check("user@example.com")
	if !decision.Allowed || decision.Remaining != 2 {
		t.Fatalf("expected clean slate after reset, got %+v", decision)
	}
}

func TestLoginLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(LoginConfig{MaxAttempts: 2, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute})

	limiter.Increment("a@example.com")
	limiter.Increment("a@example.com")

	if limiter.Check("a@example.com").Allowed {
		t.Fatal("expected a@example.com to be blocked")
	}
	if !limiter.Check("b@example.com").Allowed {
		t.Fatal("expected b@example.com to be unaffected")
	}
}
