package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAuthorizeSuccess(t *testing.T) {
	cfg := testConfig(t)
	provider := newTestProvider()
	record := seedAccount(t, cfg, provider, "operator@fleet.example", true)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	account, err := engine.Authorize(context.Background(), "operator@fleet.example", testAccountPassword)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if account.AccountID != record.AccountID {
		t.Fatalf("expected account %q, got %q", record.AccountID, account.AccountID)
	}
	if account.Role != RoleElevated {
		t.Fatalf("expected elevated role, got %q", account.Role)
	}
}

func TestAuthorizeNormalizesEmail(t *testing.T) {
	cfg := testConfig(t)
	provider := newTestProvider()
	seedAccount(t, cfg, provider, "operator@fleet.example", true)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	if _, err := engine.Authorize(context.Background(), "  Operator@Fleet.Example ", testAccountPassword); err != nil {
		t.Fatalf("expected normalized email to authorize, got %v", err)
	}
}

func TestAuthorizeWrongPasswordAndUnknownAccountIndistinguishable(t *testing.T) {
	cfg := testConfig(t)
	provider := newTestProvider()
	seedAccount(t, cfg, provider, "operator@fleet.example", true)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	_, wrongPass := engine.Authorize(context.Background(), "operator@fleet.example", "wrong-password-1")
	_, noAccount := engine.Authorize(context.Background(), "ghost@fleet.example", "whatever-password")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", wrongPass)
	}
	if !errors.Is(noAccount, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown account, got %v", noAccount)
	}
	if wrongPass.Error() != noAccount.Error() {
		t.Fatal("expected identical error text for both failure modes")
	}
}

func TestAuthorizeValidation(t *testing.T) {
	cfg := testConfig(t)
	provider := newTestProvider()
	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", testAccountPassword},
		{"malformed email", "not-an-email", testAccountPassword},
		{"email with display name", "Op <op@fleet.example>", testAccountPassword},
		{"short password", "operator@fleet.example", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Authorize(context.Background(), tc.email, tc.password); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAuthorizeDisabledAccount(t *testing.T) {
	cfg := testConfig(t)
	provider := newTestProvider()
	seedAccount(t, cfg, provider, "operator@fleet.example", false)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	// Correct password against a disabled account surfaces the specific
	// reason.
	if _, err := engine.Authorize(context.Background(), "operator@fleet.example", testAccountPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected account disabled, got %v", err)
	}

	// A wrong guess against the same account must not reveal more than
	// any other wrong guess.
	if _, err := engine.Authorize(context.Background(), "operator@fleet.example", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthorizeProviderOutage(t *testing.T) {
	cfg := testConfig(t)
	provider := newTestProvider()
	provider.FailLookups(errors.New("connection refused"))

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	if _, err := engine.Authorize(context.Background(), "operator@fleet.example", testAccountPassword); !errors.Is(err, ErrAccountBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestAuthorizeRateLimitedAfterRepeatedFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Login.MaxAttempts = 5
	provider := newTestProvider()
	seedAccount(t, cfg, provider, "operator@fleet.example", true)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	for i := 0; i < 5; i++ {
		if _, err := engine.Authorize(context.Background(), "operator@fleet.example", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}

	// Even the correct password is now rejected with a retry hint.
	_, err := engine.Authorize(context.Background(), "operator@fleet.example", testAccountPassword)
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected *RateLimitedError, got %T", err)
	}
	if rl.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %s", rl.RetryAfter)
	}
}

func TestAuthorizeSuccessDoesNotResetLimiter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Login.MaxAttempts = 3
	provider := newTestProvider()
	seedAccount(t, cfg, provider, "operator@fleet.example", true)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	for i := 0; i < 2; i++ {
		_, _ = engine.Authorize(context.Background(), "operator@fleet.example", "wrong-password-1")
	}
	if _, err := engine.Authorize(context.Background(), "operator@fleet.example", testAccountPassword); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// The window only clears after PIN verification; one more failure
	// exhausts the original budget.
	if _, err := engine.Authorize(context.Background(), "operator@fleet.example", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := engine.Authorize(context.Background(), "operator@fleet.example", testAccountPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected rate limited after exhausting original window, got %v", err)
	}
}

// TestAuthorizeTimingEqualized checks that rejection paths are not
// dramatically cheaper than the real comparison: every outcome burns an
// argon2 verify. The bound is deliberately loose; the assertion is
// about orders of magnitude, not microseconds.
func TestAuthorizeTimingEqualized(t *testing.T) {
	if testing.Short() {
		t.Skip("timing comparison skipped in short mode")
	}

	cfg := testConfig(t)
	provider := newTestProvider()
	seedAccount(t, cfg, provider, "operator@fleet.example", true)

	engine, _, done := newTestEngine(t, cfg, provider)
	defer done()

	const samples = 5
	measure := func(email, password string) time.Duration {
		var total time.Duration
		for i := 0; i < samples; i++ {
			start := time.Now()
			_, _ = engine.Authorize(context.Background(), email, password)
			total += time.Since(start)
			engine.loginLimiter.Reset(normalizeEmail(email))
		}
		return total / samples
	}

	existing := measure("operator@fleet.example", "wrong-password-1")
	missing := measure("ghost@fleet.example", "wrong-password-1")

	if missing*4 < existing {
		t.Fatalf("missing-account path suspiciously fast: existing=%s missing=%s", existing, missing)
	}
	if existing*4 < missing {
		t.Fatalf("existing-account path suspiciously fast: existing=%s missing=%s", existing, missing)
	}
}
