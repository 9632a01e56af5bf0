// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes ($2a$, $2b$, $2y$) when constructed with a
// [Bcrypt] legacy verifier, and [Hasher.NeedsRehash] reports true for them so
// the caller can migrate to Argon2id on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goCred package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
