// Package gateway is the storefront's HTTP front door.
//
// Every browser request carries a session cookie naming its client scope. The gateway attaches
// that scope's storeAuth.Manager to the request, serves the login, signup, Google sign-in,
// logout and session endpoints itself, and proxies everything else to the backend behind the
// route policy with the stored token injected as a bearer credential.
//
// A 401 or 403 from a proxied call logs the client out in one place: page requests are
// redirected to login, API requests get a 401 JSON body.
package gateway
