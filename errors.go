package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("invalid request shape")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is an exported constant or variable used by the authentication engine.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountBackendUnavailable is an exported constant or variable used by the authentication engine.
	ErrAccountBackendUnavailable = errors.New("account backend unavailable")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPinRateLimited is an exported constant or variable used by the authentication engine.
	ErrPinRateLimited = errors.New("pin verification rate limited")
	// ErrPinExpired is an exported constant or variable used by the authentication engine.
	ErrPinExpired = errors.New("pin challenge expired")
	// ErrPinSessionInvalid is an exported constant or variable used by the authentication engine.
	ErrPinSessionInvalid = errors.New("pin challenge session token invalid")
	// ErrPinAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrPinAttemptsExceeded = errors.New("pin challenge attempts exceeded")
	// ErrPinInvalid is an exported constant or variable used by the authentication engine.
	ErrPinInvalid = errors.New("invalid pin")
	// ErrPinUnavailable is an exported constant or variable used by the authentication engine.
	ErrPinUnavailable = errors.New("pin challenge backend unavailable")
	// ErrSessionInvalid is an exported constant or variable used by the authentication engine.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitedError carries the cooldown remaining on a blocked login key.
// It matches [ErrLoginRateLimited] under [errors.Is].
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("login rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

// Is describes the is operation and its observable behavior.
//
// Is may return an error when input validation, dependency calls, or security checks fail.
// Is does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrLoginRateLimited
}
