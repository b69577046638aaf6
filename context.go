package storeAuth

import "context"

type managerContextKey struct{}
type clientIPContextKey struct{}

// WithManager attaches the client's session manager to ctx. Route guards and handlers read it
// back with [ManagerFromContext].
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerContextKey{}, m)
}

// ManagerFromContext returns the manager attached by [WithManager], or nil.
func ManagerFromContext(ctx context.Context) *Manager {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(managerContextKey{}).(*Manager)
	return m
}

// WithClientIP attaches the caller's IP address to ctx. The Manager uses it for per-IP login
// throttling and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
