package storeAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/storeAuth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one session transition record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// Audit event types.
const (
	AuditLoginSuccess         = "login_success"
	AuditLoginFailure         = "login_failure"
	AuditLoginRateLimited     = "login_rate_limited"
	AuditGoogleLoginSuccess   = "google_login_success"
	AuditGoogleLoginFailure   = "google_login_failure"
	AuditSessionRestored      = "session_restored"
	AuditLogout               = "logout"
	AuditUpstreamUnauthorized = "upstream_unauthorized"
)

// NewChannelSink returns a sink that buffers events in a channel, mostly for tests.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewZapSink returns a sink that logs each event through logger, one entry per event.
func NewZapSink(logger *zap.Logger) *audit.ZapSink {
	return audit.NewZapSink(logger)
}

// emitAudit stamps and queues an event. A nil dispatcher discards it.
func (m *Manager) emitAudit(ctx context.Context, eventType string, username string, role Role, err error, meta map[string]string) {
	if m.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Username:  username,
		Role:      string(role),
		Scope:     m.store.Scope(),
		IP:        clientIPFromContext(ctx),
		Success:   err == nil,
		Metadata:  meta,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	m.audit.Emit(ctx, ev)
}
