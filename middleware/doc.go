// Package middleware provides the storefront route guards as net/http middleware.
//
// # Guards
//
//   - [RequireAuth]: any authenticated client; others are redirected to login.
//   - [RequireRole]: authenticated and role in the allowed set; others get the
//     access-denied page (403) with a back link, never a redirect.
//
// Both answer 204 with an empty body while the session is still loading, after an optional
// bounded wait. [Evaluate] is the pure decision table behind them.
//
// # Architecture boundaries
//
// Guards only read the storeAuth.Manager attached to the request context. They decide what
// the gateway renders, not what the backend allows: the backend re-checks the token on every
// protected call.
//
// # What this package must NOT do
//
//   - Decode tokens or touch session storage.
//   - Run the wrapped handler while the session is loading.
package middleware
