// Package goCred provides a credential lifecycle engine: registration,
// password authentication with HS256 JWT access and refresh tokens, password
// change, and email-based password recovery with single-use reset tokens.
//
// An [Engine] is assembled once through [Builder.Build] and is safe for
// concurrent use afterwards. Persistence and delivery are pluggable through
// [UserStore], [ResetTokenStore] and [Notifier]; implementations live in
// store/memory, store/postgres and notify.
//
// # Architecture boundaries
//
// goCred is the public surface. It exposes [Engine], [Builder], [Config], the
// sentinel errors and the value types. Flow orchestration, Redis-backed
// throttling, the Redis reset token store and audit dispatch live under
// internal/ and are never exported. The REST surface lives in internal/httpapi
// and only depends on the public API.
//
// # What this package must NOT do
//
//   - Reveal whether a username or email is registered through Authenticate
//     or InitiateRecovery.
//   - Store or log reset tokens in clear; only their SHA-256 keys are persisted.
//   - Import any sub-package that re-imports goCred.
//
// # Performance contract
//
// ValidateToken is the hot path. It is a pure signature and expiry check with
// no store or Redis round-trip.
package goCred
