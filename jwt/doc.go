// Package jwt issues and verifies the HS256 bearer tokens used by goCred.
//
// Two token types share one secret: access tokens for API calls and refresh
// tokens for minting new pairs. Both carry a "typ" claim so that one can never
// be accepted in place of the other.
//
// Verification always checks the signature before any claim is read, and every
// failure is reported as one of ErrTokenMalformed, ErrTokenSignatureInvalid,
// ErrTokenExpired or ErrTokenInvalid.
package jwt
