package api

import (
	"errors"
	"fmt"
	"net/http"

	storeAuth "github.com/MrEthical07/storeAuth"
)

var (
	// ErrUnauthorized means the backend answered 401 or 403 to a bearer-authenticated call.
	ErrUnauthorized = errors.New("backend rejected bearer token")
	// ErrRejected means the backend refused an auth request; see [RejectedError].
	ErrRejected = errors.New("request rejected by backend")
	// ErrUnavailable wraps transport failures.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrUnexpectedResponse means a 2xx reply could not be decoded.
	ErrUnexpectedResponse = errors.New("unexpected backend response")
)

// UnauthorizedError reports the status of a bearer call the backend refused. It matches
// [ErrUnauthorized].
type UnauthorizedError struct {
	Status int
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrUnauthorized, e.Status)
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// RejectedError carries the backend's status and user-facing message for a refused login or
// signup. Login rejections also match storeAuth.ErrLoginRejected.
type RejectedError struct {
	Status  int
	Message string
	login   bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *RejectedError) Unwrap() []error {
	if e.login {
		return []error{ErrRejected, storeAuth.ErrLoginRejected}
	}
	return []error{ErrRejected}
}

func rejected(status int, message, fallback string, login bool) error {
	if message == "" {
		message = fallback
	}
	if status == 0 {
		status = http.StatusOK
	}
	return &RejectedError{Status: status, Message: message, login: login}
}
