package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
)

const maxResponseBytes = 1 << 20

// Ensure Client satisfies storeAuth.Authenticator at compile time.
var _ storeAuth.Authenticator = (*Client)(nil)

// Client talks to the backend auth endpoints and forwards bearer-authenticated requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL. A nil httpClient gets a 15s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Login calls POST /api/auth/login. The backend only returns a token; the role travels in it.
func (c *Client) Login(ctx context.Context, username, password string) (storeAuth.Grant, error) {
	var out loginResponse
	status, err := c.postJSON(ctx, "/api/auth/login", loginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return storeAuth.Grant{}, err
	}
	if out.Error != "" || status >= 300 || out.Token == "" {
		return storeAuth.Grant{}, rejected(status, out.Error, "Login failed", true)
	}
	return storeAuth.Grant{Token: out.Token}, nil
}

// GoogleProfile is the profile block of the federated exchange.
type GoogleProfile struct {
	Sub     string `json:"sub,omitempty"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type googleRequest struct {
	IDToken string        `json:"idToken"`
	Profile GoogleProfile `json:"profile"`
	Type    string        `json:"type"`
}

type backendUser struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
}

type googleResponse struct {
	Token string      `json:"token"`
	User  backendUser `json:"user"`
	Error string      `json:"error"`
}

// Google calls POST /api/auth/google with the ID token and its profile.
func (c *Client) Google(ctx context.Context, req storeAuth.GoogleLogin) (storeAuth.Grant, error) {
	body := googleRequest{
		IDToken: req.IDToken,
		Profile: GoogleProfile{Sub: req.Subject, Email: req.Email, Name: req.Name, Picture: req.Picture},
		Type:    req.AccountType,
	}

	var out googleResponse
	status, err := c.postJSON(ctx, "/api/auth/google", body, &out)
	if err != nil {
		return storeAuth.Grant{}, err
	}
	if out.Error != "" || status >= 300 || out.Token == "" {
		return storeAuth.Grant{}, rejected(status, out.Error, "Google sign-in failed", true)
	}

	role, _ := storeAuth.ParseRole(out.User.Role)
	return storeAuth.Grant{
		Token: out.Token,
		User: storeAuth.User{
			Username: out.User.Username,
			Role:     role,
			Profile: storeAuth.Profile{
				Email:        out.User.Email,
				ProfileImage: out.User.ProfileImage,
				FullName:     out.User.FullName,
			},
		},
	}, nil
}

// SignupRequest is the self-service registration form. Role is always CUSTOMER.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type signupResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Signup calls POST /api/auth/signup and returns the backend's confirmation message.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, error) {
	req.Role = string(storeAuth.RoleCustomer)

	var out signupResponse
	status, err := c.postJSON(ctx, "/api/auth/signup", req, &out)
	if err != nil {
		return "", err
	}
	if out.Error != "" || status >= 300 {
		return "", rejected(status, out.Error, "Signup failed", false)
	}
	return out.Message, nil
}

// Do sends req with Authorization: Bearer token, replacing any Authorization the caller set.
// Server-side requests may be passed as they are. When the backend answers 401 or 403 the
// body is closed and the error is an [*UnauthorizedError]; the caller should log the client out.
func (c *Client) Do(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	req = req.Clone(ctx)
	req.RequestURI = ""
	req.Header.Del("Authorization")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		return nil, &UnauthorizedError{Status: resp.StatusCode}
	}
	return resp, nil
}

// NewRequest builds a request for a backend path.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

// postJSON posts in and decodes the reply into out whatever the status. A reply that is not
// JSON is an error only for 2xx statuses.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil && resp.StatusCode < 300 {
		return resp.StatusCode, fmt.Errorf("%w: %s returned invalid json: %v", ErrUnexpectedResponse, path, err)
	}
	return resp.StatusCode, nil
}

// IsUnauthorized reports whether err means the backend refused the bearer token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
