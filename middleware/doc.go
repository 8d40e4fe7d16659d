// Package middleware exposes the HTTP guard built on top of
// authcore.Engine session validation.
//
// # Guard
//
// [Guard] reads the session token from the Authorization header (or the
// session cookie as a fallback), calls Engine.ValidateSession, injects
// the validated [authcore.AuthResult] into the request context, and,
// when the liveness stamp was renewed, emits the replacement token in
// the X-Session-Refresh response header so the caller can rotate its
// cookie.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated
// to Engine.ValidateSession.
//
// # What this package must NOT do
//
//   - Parse or create session tokens directly (delegates to Engine).
//   - Access the backing store (Engine handles I/O).
//   - Make decisions beyond pass/reject from Engine.ValidateSession.
package middleware
