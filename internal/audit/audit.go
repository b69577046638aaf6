package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Event is one session transition record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Username  string            `json:"username,omitempty"`
	Role      string            `json:"role,omitempty"`
	Scope     string            `json:"scope,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalLogObject lets events be logged as a single zap field.
func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("timestamp", e.Timestamp)
	enc.AddString("event_type", e.EventType)
	enc.AddBool("success", e.Success)
	for k, v := range map[string]string{
		"username": e.Username,
		"role":     e.Role,
		"scope":    e.Scope,
		"ip":       e.IP,
		"error":    e.Error,
	} {
		if v != "" {
			enc.AddString(k, v)
		}
	}
	if len(e.Metadata) > 0 {
		return enc.AddObject("metadata", zapcore.ObjectMarshalerFunc(func(inner zapcore.ObjectEncoder) error {
			for k, v := range e.Metadata {
				inner.AddString(k, v)
			}
			return nil
		}))
	}
	return nil
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// ZapSink writes each event as one log entry. Failed transitions log at warn.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	if ce := s.logger.Check(level, "audit"); ce != nil {
		ce.Write(zap.Object("event", event))
	}
}
