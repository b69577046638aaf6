package audit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	gate chan struct{}
	got  chan Event
}

func (s *blockingSink) Emit(_ context.Context, event Event) {
	<-s.gate
	s.got <- event
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	if d.Emit(context.Background(), Event{EventType: "login_success"}) {
		t.Fatal("nil dispatcher must not accept events")
	}
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	if !d.Emit(context.Background(), Event{EventType: "logout", Scope: "s-1"}) {
		t.Fatal("expected event to be accepted")
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != "logout" || ev.Scope != "s-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{gate: make(chan struct{}), got: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The first event parks the worker inside the sink, the second fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "b"})
	if d.Emit(context.Background(), Event{EventType: "c"}) {
		t.Fatal("expected third event to be dropped")
	}
	if got := d.Dropped(); got != 1 {
		t.Fatalf("expected 1 drop, got %d", got)
	}

	close(sink.gate)
	d.Close()
	if len(sink.got) != 2 {
		t.Fatalf("expected 2 delivered events after close, got %d", len(sink.got))
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, NoOpSink{})
	d.Close()
	d.Close()
	if d.Emit(context.Background(), Event{EventType: "late"}) {
		t.Fatal("closed dispatcher must not accept events")
	}
}

func TestBlockingEmitWaitsForRoom(t *testing.T) {
	sink := &blockingSink{gate: make(chan struct{}), got: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if d.Emit(ctx, Event{EventType: "c"}) {
		t.Fatal("expected emit to give up when ctx ends")
	}
	if d.Dropped() != 0 {
		t.Fatal("blocking mode must not count drops")
	}
	close(sink.gate)
}

func TestZapSinkLogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_success", Username: "ana", Success: true})
	sink.Emit(context.Background(), Event{
		EventType: "login_failure",
		Username:  "ana",
		Error:     "rejected",
		Metadata:  map[string]string{"method": "password"},
	})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}

	fields := entries[1].ContextMap()["event"].(map[string]any)
	if fields["event_type"] != "login_failure" || fields["error"] != "rejected" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["role"]; ok {
		t.Fatal("empty fields must be omitted")
	}
	if meta := fields["metadata"].(map[string]any); meta["method"] != "password" {
		t.Fatalf("unexpected metadata %v", meta)
	}
}
