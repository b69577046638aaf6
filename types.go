package storeAuth

import "context"

// Profile holds the optional identity fields persisted next to the token.
type Profile struct {
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	FullName     string `json:"fullName,omitempty"`
}

// User is the identity published by a [Manager].
type User struct {
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	IsGoogleAuth bool   `json:"isGoogleAuth"`
	Profile
}

// Grant is what the backend returns for an accepted login. Password logins only carry a token;
// federated logins also carry the user record.
type Grant struct {
	Token string
	User  User
}

// GoogleLogin is a federated ID token plus the profile decoded from it, ready to be exchanged
// with the backend.
type GoogleLogin struct {
	IDToken     string
	Subject     string
	Email       string
	Name        string
	Picture     string
	AccountType string
}

// Authenticator is the backend auth contract. api.Client implements it over HTTP.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Grant, error)
	Google(ctx context.Context, req GoogleLogin) (Grant, error)
}
