package storeAuth

import "errors"

var (
	// ErrDisposed is returned by transitions started after [Manager.Dispose] or [Provider.Close].
	ErrDisposed = errors.New("session manager disposed")
	// ErrMissingToken rejects a login without a bearer token.
	ErrMissingToken = errors.New("token is required")
	// ErrMissingUsername rejects a login without a username.
	ErrMissingUsername = errors.New("username is required")
	// ErrInvalidCredentials means the login form was incomplete and no backend call was made.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRejected wraps a login the backend refused. The wrapped message is safe to show.
	ErrLoginRejected = errors.New("login rejected")
	// ErrLoginRateLimited means the username or client IP exhausted its login window.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrNoAuthenticator is returned by backend logins when the provider was built without one.
	ErrNoAuthenticator = errors.New("no authenticator configured")
	// ErrSessionUnavailable wraps session storage failures surfaced by transitions.
	ErrSessionUnavailable = errors.New("session storage unavailable")
	// ErrNoBackend is returned by [Builder.Build] without a session backend.
	ErrNoBackend = errors.New("session backend is required")
)
