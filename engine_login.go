package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

// Authorize verifies email + password without issuing any credential.
// It is the first half of the login handshake; the caller proceeds to
// CreatePinChallenge on success.
//
// Every rejection path performs exactly one argon2 comparison, against
// the stored hash when an account exists and against a precomputed
// equalizer hash otherwise, so response timing does not reveal whether
// an account exists, is rate limited, or is disabled.
//
// Failed attempts count against the per-email sliding window; the
// window is reset only after the follow-up PIN verification succeeds,
// never here.
func (e *Engine) Authorize(ctx context.Context, email, password string) (*AccountInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	key := normalizeEmail(email)
	if !validEmailShape(key) || len(password) < e.config.Login.MinPasswordLength {
		return nil, ErrValidation
	}

	decision := e.loginLimiter.Check(key)
	if !decision.Allowed {
		e.burnVerify()
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, "login.rate_limited", "", false, ErrLoginRateLimited.Error(), nil)
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	account, err := e.accounts.GetAccountByEmail(ctx, key)
	if err != nil {
		e.burnVerify()
		if errors.Is(err, ErrAccountNotFound) {
			e.loginLimiter.Increment(key)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, "login.failure", "", false, ErrInvalidCredentials.Error(), nil)
			return nil, ErrInvalidCredentials
		}
		e.emitAudit(ctx, "login.failure", "", false, ErrAccountBackendUnavailable.Error(), nil)
		return nil, fmt.Errorf("%w: %v", ErrAccountBackendUnavailable, err)
	}

	match, err := e.passwordHash.Verify(password, account.PasswordHash)
	if err != nil {
		// Stored hash is malformed; burn the equalizer so the early
		// parse failure does not show through as timing.
		e.burnVerify()
		match = false
	}
	if !match {
		e.loginLimiter.Increment(key)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, "login.failure", account.AccountID, false, ErrInvalidCredentials.Error(), nil)
		return nil, ErrInvalidCredentials
	}

	// Disabled accounts surface only after a correct password: a wrong
	// guess against a disabled account reads as plain invalid
	// credentials.
	if !account.Active {
		e.loginLimiter.Increment(key)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, "login.failure", account.AccountID, false, ErrAccountDisabled.Error(), nil)
		return nil, ErrAccountDisabled
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, "login.success", account.AccountID, true, "", nil)

	return &AccountInfo{
		AccountID: account.AccountID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      account.Role,
	}, nil
}

// burnVerify runs one argon2 comparison against the precomputed
// equalizer hash. The result is discarded.
func (e *Engine) burnVerify() {
	_, _ = e.passwordHash.Verify(dummyVerifyPassword, e.dummyHash)
}

func validEmailShape(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
