// Package session persists the storefront client session as discrete key-value entries.
//
// # Model
//
// A [Session] is the token, the username, and optional profile fields. The [Store] binds a
// [Backend] to one client scope (the gateway's session cookie) and is the only code allowed to
// read or write those entries. Backends: [MemoryBackend], [RedisBackend], and
// session/postgres.Backend.
//
// # Architecture boundaries
//
// This package owns storage layout and atomicity. It does NOT decode tokens, derive roles, or
// decide whether a client is authorized; the storeAuth Manager does that on top of [Store.Load].
//
// # What this package must NOT do
//
//   - Import storeAuth or jwt (no upward imports).
//   - Return a session whose token or username is missing.
//   - Share entries between scopes.
package session
