// Package api is the HTTP client for the storefront backend's auth endpoints.
//
// [Client] implements storeAuth.Authenticator for password and Google logins, registers new
// customers, and forwards bearer-authenticated calls. A 401 or 403 from a forwarded call is
// reported as [ErrUnauthorized] so the caller can expire the client's session.
package api
