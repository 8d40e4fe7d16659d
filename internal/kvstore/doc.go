// Package kvstore provides the dual-backend ephemeral key/value layer used
// for PIN challenges, the verification-rate counters, and the stale-session
// set.
//
// # Design
//
// [Store] is implemented twice: [Redis] against the distributed cache and
// [Local] against a process-local map with absolute expiries. [Fallback]
// composes them and re-selects the backend on every single call. A
// transient cache outage degrades the affected calls to single-instance
// behavior instead of failing the request, and recovery is picked up
// automatically on the next call. The two backends are never synchronized.
//
// # Architecture boundaries
//
// This package owns storage and expiry only. Record encoding, attempt
// policies, and authentication decisions belong to the engine.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Cache the backend choice across calls.
//   - Let a distributed call block past its per-call timeout.
package kvstore
