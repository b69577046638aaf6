package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/api"
	"github.com/MrEthical07/storeAuth/middleware"
	"go.uber.org/zap"
)

type originalURIKey struct{}

// bearerTransport forwards proxied requests with the client's stored token and turns an
// upstream 401 or 403 into a logout.
type bearerTransport struct {
	client    *api.Client
	loginPath string
	logger    *zap.Logger
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	m := storeAuth.ManagerFromContext(ctx)

	var token string
	if m != nil && m.Snapshot().Authenticated() {
		if token = m.GetToken(ctx); token == "" {
			// The stored entries expired or were cleared elsewhere; republish what storage holds.
			if m.CheckAuthStatus(ctx).Authenticated() {
				token = m.GetToken(ctx)
			}
			if _, guarded := middleware.SnapshotFromContext(ctx); guarded && token == "" {
				return t.expired(req), nil
			}
		}
	}

	resp, err := t.client.Do(ctx, req, token)
	if err == nil {
		return resp, nil
	}

	var unauthorized *api.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		return nil, err
	}

	if m != nil && m.Snapshot().Authenticated() {
		if _, err := m.ExpireFromUpstream(ctx, unauthorized.Status); err != nil {
			t.logger.Warn("session expiry incomplete",
				zap.String("scope", m.Scope()),
				zap.Error(err),
			)
		}
	}
	return t.expired(req), nil
}

// expired answers a page navigation with a login redirect carrying the original URI and a
// fetch call with a JSON 401.
func (t *bearerTransport) expired(req *http.Request) *http.Response {
	from, _ := req.Context().Value(originalURIKey{}).(string)
	if wantsHTML(req) {
		return synthesize(req, http.StatusFound, http.Header{
			"Location":      {middleware.LoginURL(t.loginPath, from)},
			"Cache-Control": {"no-store"},
		}, nil)
	}
	return synthesize(req, http.StatusUnauthorized, http.Header{
		"Content-Type":  {"application/json"},
		"Cache-Control": {"no-store"},
	}, []byte(`{"error":"session expired"}`+"\n"))
}

func synthesize(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// wantsHTML reports whether req comes from a page navigation rather than a fetch call.
func wantsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

// dropCookie removes the gateway's own cookie from an outbound request.
func dropCookie(req *http.Request, name string) {
	cookies := req.Cookies()
	if len(cookies) == 0 {
		return
	}
	req.Header.Del("Cookie")
	for _, c := range cookies {
		if c.Name != name {
			req.AddCookie(c)
		}
	}
}
