// Package middleware exposes net/http adapters over goCred.Engine.
//
// # Handlers
//
//   - [Guard] verifies the bearer access token through Engine.Claims and
//     stores the claims in the request context.
//   - [RequireRole] restricts a route to the given roles; it runs after Guard.
//   - [RequestContext] attaches a request ID and client IP that the Engine
//     copies into audit events and uses for per-IP recovery throttling.
//
// This package translates HTTP semantics into Engine calls. It does not parse
// or sign tokens itself.
package middleware
