// Package jwt decodes the payload of storefront access tokens and federated ID tokens.
//
// # Not a verifier
//
// Nothing in this package checks a signature, an expiry, or an issuer. Decoded claims decide
// which pages the gateway is willing to render, nothing more. Every protected backend endpoint
// verifies the same bearer token on every request, and that check is the only authorization
// boundary in the system.
//
// # What this package must NOT do
//
//   - Treat a successful [Decode] as proof of identity.
//   - Return errors or panic on malformed input: callers fall back to the default role.
//   - Import storeAuth (no upward imports).
package jwt
