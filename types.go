package authcore

import (
	"context"
	"time"
)

// Role enumerates the account roles recognized by the dashboard core.
type Role string

const (
	// RoleElevated is an exported constant or variable used by the authentication engine.
	RoleElevated Role = "elevated"
	// RoleStandard is an exported constant or variable used by the authentication engine.
	RoleStandard Role = "standard"
)

// AccountRecord is the full account row returned by [AccountProvider].
// The password hash never leaves the credential verifier; the active
// flag is the only field this core re-reads after login.
type AccountRecord struct {
	AccountID    string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Active       bool
}

// AccountInfo is the public projection of an account returned by
// [Engine.Authorize]. It deliberately omits the password hash.
type AccountInfo struct {
	AccountID string
	Email     string
	Name      string
	Role      Role
}

// AccountProvider is the interface callers must implement to integrate
// authcore with their persistent account store. Accounts are read-only
// from this core's perspective; mutation happens through administrative
// tooling outside this module.
//
// GetAccountByEmail must return [ErrAccountNotFound] for unknown emails;
// GetAccountActive must return it for unknown account ids. Any other
// error is treated as a transient backend failure. Lookups are keyed by
// normalized (lowercased, trimmed) email.
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error)
	GetAccountActive(ctx context.Context, accountID string) (bool, error)
}

// ChallengeResult is returned by [Engine.CreatePinChallenge]. The PIN is
// handed to the caller for out-of-band display; the session token binds
// the follow-up verification to this handshake.
type ChallengeResult struct {
	Pin          string
	SessionToken string
	ExpiresIn    time.Duration
}

// SessionResult is returned by [Engine.IssueSession].
type SessionResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthResult is returned by [Engine.ValidateSession] for an
// authenticated request.
type AuthResult struct {
	AccountID  string
	Role       Role
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LivenessAt time.Time
}
