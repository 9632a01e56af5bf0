// Package internal contains helpers that are private to goCred, chiefly
// reset token generation and key derivation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: credential-reset flow orchestration behind Engine methods
//   - limiters: Redis fixed-window limiters (login, recovery)
//   - stores: Redis-backed reset token store
//   - httpapi: REST surface over the Engine
//   - serverconfig: process configuration for cmd/gocred-server
//
// # What this package must NOT do
//
//   - Export types that appear in the public goCred API.
//   - Be imported by any package outside the goCred module.
package internal
