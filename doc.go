// Package storeAuth is the session core of the storefront gateway: it keeps each client's
// bearer token, tracks whether the client is authenticated, and resolves the client's role.
//
// A [Provider] (built with [Builder]) hands out one [Manager] per client scope. The Manager is
// a small state machine (loading, authenticated, unauthenticated) over a session.Store and
// exposes the client operations: [Manager.CheckAuthStatus], [Manager.Login],
// [Manager.LoginWithPassword], [Manager.LoginWithGoogle], [Manager.Logout], and
// [Manager.GetToken]. Route guards in the middleware package read the published [Snapshot].
//
// # Trust model
//
// Roles come from the token's payload, decoded without any signature check (see package jwt).
// They only decide which pages the gateway renders. Every protected backend endpoint verifies
// the same token itself; nothing here is an authorization decision.
//
// # Architecture boundaries
//
// storeAuth owns the state machine, login throttling, metrics, and audit. Storage layout lives
// in session, the backend HTTP contract in api, HTTP wiring in gateway.
//
// # What this package must NOT do
//
//   - Verify token signatures or treat a decoded role as proof of anything.
//   - Import api, gateway, or middleware (they import storeAuth).
//   - Publish state after [Manager.Dispose].
package storeAuth
