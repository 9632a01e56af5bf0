// Package limiters provides Redis fixed-window rate limiters for the
// credential flows.
//
// # Limiters
//
//   - [RecoveryLimiter]: per-email and per-IP throttle for recovery requests,
//     per-IP throttle for reset confirmations.
//   - [LoginLimiter]: per-username failed-login budget.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import goCred or any sibling internal package.
//   - Make policy decisions beyond counting. The engine decides consequences.
package limiters
