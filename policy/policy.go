package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/middleware"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultPolicy []byte

// Route guards every path under Prefix. Roles selects the role guard; Authenticated alone
// selects the authentication guard.
type Route struct {
	Prefix        string   `yaml:"prefix"`
	Roles         []string `yaml:"roles"`
	Authenticated bool     `yaml:"authenticated"`

	allowed []storeAuth.Role
}

// Allowed returns the role set for [middleware.Evaluate]: nil for authentication-only routes.
func (r Route) Allowed() []storeAuth.Role {
	return r.allowed
}

// Policy maps path prefixes to guards.
type Policy struct {
	LoginPath string  `yaml:"login_path"`
	Routes    []Route `yaml:"routes"`
}

// Default returns the embedded storefront policy.
func Default() *Policy {
	p, err := Parse(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded default is invalid: %v", err))
	}
	return p
}

// Load reads a policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML policy. Unknown fields and unknown role names are errors.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) compile() error {
	if p.LoginPath == "" {
		p.LoginPath = "/login"
	}
	if !strings.HasPrefix(p.LoginPath, "/") {
		return fmt.Errorf("login_path %q must start with /", p.LoginPath)
	}

	seen := make(map[string]bool, len(p.Routes))
	for i := range p.Routes {
		r := &p.Routes[i]
		r.Prefix = strings.TrimSuffix(strings.TrimSpace(r.Prefix), "/")
		if r.Prefix == "" || !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("route %d: prefix must start with / and not be the root", i)
		}
		if seen[r.Prefix] {
			return fmt.Errorf("route %d: duplicate prefix %s", i, r.Prefix)
		}
		seen[r.Prefix] = true
		if r.Prefix == p.LoginPath || strings.HasPrefix(p.LoginPath, r.Prefix+"/") {
			return fmt.Errorf("route %s would guard the login page", r.Prefix)
		}

		if len(r.Roles) == 0 {
			if !r.Authenticated {
				return fmt.Errorf("route %s: set roles or authenticated", r.Prefix)
			}
			r.allowed = nil
			continue
		}
		r.allowed = make([]storeAuth.Role, 0, len(r.Roles))
		for _, name := range r.Roles {
			role, ok := storeAuth.ParseRole(name)
			if !ok {
				return fmt.Errorf("route %s: unknown role %q", r.Prefix, name)
			}
			r.allowed = append(r.allowed, role)
		}
	}

	// Longest prefix first so Match can return the first hit.
	sort.SliceStable(p.Routes, func(i, j int) bool {
		return len(p.Routes[i].Prefix) > len(p.Routes[j].Prefix)
	})
	return nil
}

// Match returns the most specific route guarding path. Prefixes match whole segments:
// /admin guards /admin and /admin/products but not /administrator.
func (p *Policy) Match(path string) (Route, bool) {
	for _, r := range p.Routes {
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return Route{}, false
}

// Middleware guards every matching request with the route's guard and passes other requests
// through untouched. opts.LoginPath defaults to the policy's login path.
func (p *Policy) Middleware(opts middleware.Options) func(http.Handler) http.Handler {
	if opts.LoginPath == "" {
		opts.LoginPath = p.LoginPath
	}

	return func(next http.Handler) http.Handler {
		guarded := make(map[string]http.Handler, len(p.Routes))
		for _, r := range p.Routes {
			guarded[r.Prefix] = middleware.Guard(opts, r.Allowed())(next)
		}

		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r, ok := p.Match(req.URL.Path); ok {
				guarded[r.Prefix].ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
