// Package authcore provides the authentication and session-security
// engine for a solar street-light fleet dashboard: password + one-time
// PIN two-step login, brute-force rate limiting, timing-equalized
// credential verification, and JWT sessions with periodic account
// liveness re-checks.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder],
// [Config], value types (AccountInfo, ChallengeResult, SessionResult,
// AuthResult), and the sentinel errors of the login and PIN steps.
// Challenge encoding and the dual-backend ephemeral store live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, the challenge store, or record encodings in
//     its public API.
//   - Own account data. Accounts are read through [AccountProvider];
//     password hashes never leave the credential verifier.
//   - Retry on its own. Every retry is user-initiated ("request new
//     code"); infrastructure failures degrade to the local fallback or
//     surface as a generic failure, never as silent access.
//
// # Performance contract
//
// ValidateSession is the hot path. Within the liveness threshold it
// completes without any backend round-trip; past it, one account read
// plus at most one store read. Authorize always burns exactly one
// argon2 comparison regardless of outcome.
package authcore
