// Package internal contains helper utilities that are intentionally private
// to authcore, including secure random generation for PIN challenges.
//
// # Sub-packages
//
//   - kvstore — dual-backend (distributed cache / local map) ephemeral store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
