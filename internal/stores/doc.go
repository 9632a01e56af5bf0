// Package stores provides the Redis-backed reset token store.
//
// # Design
//
// Records are versioned, binary-encoded and stored with a TTL under a digest of
// the reset token. Consume uses a WATCH/MULTI optimistic transaction with retry
// on contention, so a record is handed out at most once. A per-user set indexes
// live records so that issuing a new token can revoke older ones.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control only. It does NOT
// generate tokens, check expiry, enforce rate limits or make authentication
// decisions; those belong to the engine and internal/flows.
//
// # What this package must NOT do
//
//   - Import goCred or any sibling internal package.
//   - See or store plaintext reset tokens.
package stores
