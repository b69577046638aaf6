package jwt

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the storefront access-token payload the gateway reads.
//
// Role is kept as the raw claim string. Callers normalize it (see storeAuth.NormalizeRole).
type Claims struct {
	Role         string `json:"role,omitempty"`
	IsGoogleAuth bool   `json:"isGoogleAuth,omitempty"`
	jwt.RegisteredClaims
}

// Profile is the identity payload of a federated (Google) ID token.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// segmentParser decodes base64url segments. Padding is tolerated so that tokens produced by
// encoders that keep '=' still decode.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the payload claims of token WITHOUT verifying its signature.
//
// The result is only a hint for routing decisions such as which portal to show. It returns
// (nil, false) when token is not three dot-separated segments, the payload is not base64url,
// or the payload is not a JSON object.
//
//	Performance: one base64 decode and one JSON decode, no I/O.
func Decode(token string) (*Claims, bool) {
	payload, ok := payloadSegment(token)
	if !ok {
		return nil, false
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, false
	}
	return &claims, true
}

// DecodeProfile extracts the identity claims of a federated ID token without verification.
// The backend verifies the same token during the exchange.
func DecodeProfile(idToken string) (Profile, bool) {
	payload, ok := payloadSegment(idToken)
	if !ok {
		return Profile{}, false
	}

	var profile Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return Profile{}, false
	}
	return profile, true
}

func payloadSegment(token string) ([]byte, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, false
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}
	return payload, true
}
