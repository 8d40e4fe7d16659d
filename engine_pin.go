package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/lumenfleet/authcore/internal"
)

// CreatePinChallenge runs the credential step and, on success, issues a
// single-use numeric PIN bound to a fresh random session token. The
// challenge is keyed by normalized email with an absolute TTL. At most
// one challenge is live per email; issuing a new one silently replaces
// the previous.
//
// The PIN inherits the caller's responsibility for out-of-band
// presentation; this engine only generates and verifies it.
func (e *Engine) CreatePinChallenge(ctx context.Context, email, password string) (*ChallengeResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.Authorize(ctx, email, password)
	if err != nil {
		return nil, err
	}

	pin, err := internal.NewPin(e.config.Pin.Digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	token, err := internal.NewChallengeToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}

	key := normalizeEmail(email)
	record := &pinChallenge{
		Pin:       pin,
		Token:     token,
		AccountID: account.AccountID,
		Attempts:  0,
		ExpiresAt: e.now().Add(e.config.Pin.TTL).Unix(),
	}
	if err := e.pinStore.Save(ctx, key, record); err != nil {
		return nil, err
	}

	e.metricInc(MetricPinIssued)
	e.emitAudit(ctx, "pin.issued", account.AccountID, true, "", nil)

	return &ChallengeResult{
		Pin:          pin,
		SessionToken: token,
		ExpiresIn:    e.config.Pin.TTL,
	}, nil
}

// VerifyPinChallenge checks a submitted PIN against the live challenge
// for email. The checks run in a fixed order and each failure reason is
// surfaced distinctly; the PIN step already proved the credentials, so
// fine-grained reasons are safe here:
//
//  1. the fixed-window verification limiter (denial touches nothing),
//  2. challenge presence (absence and expiry are indistinguishable),
//  3. session token binding, constant-time and length-checked,
//  4. the per-challenge attempt cap,
//  5. the PIN itself, constant-time and length-checked.
//
// A correct PIN with a mismatched session token never succeeds. Success
// consumes the challenge and resets the login attempt window for email.
func (e *Engine) VerifyPinChallenge(ctx context.Context, email, pin, token string) (*AccountInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	key := normalizeEmail(email)
	if !validEmailShape(key) || pin == "" || token == "" {
		return nil, ErrValidation
	}

	allowed, err := e.verifyLimiter.Allowed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	if !allowed {
		e.metricInc(MetricPinRateLimited)
		e.emitAudit(ctx, "pin.rate_limited", "", false, ErrPinRateLimited.Error(), nil)
		return nil, ErrPinRateLimited
	}

	record, err := e.pinStore.Get(ctx, key)
	if err != nil {
		// Absent, expired, and unreadable all read the same: the caller
		// is told to request a new code.
		_ = e.verifyLimiter.Record(ctx, key)
		e.metricInc(MetricPinExpired)
		e.emitAudit(ctx, "pin.expired", "", false, ErrPinExpired.Error(), nil)
		return nil, ErrPinExpired
	}

	if len(token) != len(record.Token) ||
		subtle.ConstantTimeCompare([]byte(token), []byte(record.Token)) != 1 {
		_ = e.verifyLimiter.Record(ctx, key)
		e.metricInc(MetricPinFailure)
		e.emitAudit(ctx, "pin.session_invalid", record.AccountID, false, ErrPinSessionInvalid.Error(), nil)
		return nil, ErrPinSessionInvalid
	}

	if int(record.Attempts) >= e.config.Pin.MaxAttempts {
		_ = e.pinStore.Delete(ctx, key)
		e.metricInc(MetricPinAttemptsExceeded)
		e.emitAudit(ctx, "pin.attempts_exceeded", record.AccountID, false, ErrPinAttemptsExceeded.Error(), nil)
		return nil, ErrPinAttemptsExceeded
	}

	if len(pin) != len(record.Pin) ||
		subtle.ConstantTimeCompare([]byte(pin), []byte(record.Pin)) != 1 {
		_ = e.verifyLimiter.Record(ctx, key)
		exceeded, recErr := e.pinStore.RecordFailure(ctx, key, record, e.config.Pin.MaxAttempts)
		if recErr != nil && errors.Is(recErr, ErrPinExpired) {
			e.metricInc(MetricPinExpired)
			return nil, ErrPinExpired
		}
		if exceeded {
			e.metricInc(MetricPinAttemptsExceeded)
			e.emitAudit(ctx, "pin.attempts_exceeded", record.AccountID, false, ErrPinAttemptsExceeded.Error(), nil)
			return nil, ErrPinAttemptsExceeded
		}
		e.metricInc(MetricPinFailure)
		e.emitAudit(ctx, "pin.failure", record.AccountID, false, ErrPinInvalid.Error(), nil)
		return nil, ErrPinInvalid
	}

	_ = e.pinStore.Delete(ctx, key)
	e.loginLimiter.Reset(key)

	// Re-read the account so the handshake completes against current
	// state; a disablement landing mid-handshake still blocks issuance.
	account, err := e.accounts.GetAccountByEmail(ctx, key)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrAccountBackendUnavailable, err)
	}
	if !account.Active {
		e.emitAudit(ctx, "pin.failure", account.AccountID, false, ErrAccountDisabled.Error(), nil)
		return nil, ErrAccountDisabled
	}

	e.metricInc(MetricPinSuccess)
	e.emitAudit(ctx, "pin.success", account.AccountID, true, "", nil)

	return &AccountInfo{
		AccountID: account.AccountID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      account.Role,
	}, nil
}
