// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunAuthenticate, RunRefresh, RunValidate,
// RunChangePassword, RunRequestRecovery, RunConfirmRecovery) accepts a typed
// dependency struct of closures and returns plain results. Host sentinel
// errors, metric IDs and audit event names are passed in through the Errors,
// Metrics and Events sub-structs.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, reset token store,
// token manager, hasher, limiters, notifier, audit and metrics. They do NOT own
// any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goCred (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency closures.
package flows
