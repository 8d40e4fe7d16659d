// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification always recomputes the full Argon2id derivation and compares in
// constant time, so a Verify call costs the same whether the stored hash is
// the account's real hash or the engine's fixed dummy hash.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, timing-equalized dummy comparisons) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
