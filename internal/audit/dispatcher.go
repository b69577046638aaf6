package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards events to a sink from a single goroutine.
// A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	// mu guards closing ch; senders hold it shared.
	mu     sync.RWMutex
	closed bool
	ch     chan Event

	stopped chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg.Enabled is false.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		ch:         make(chan Event, cfg.BufferSize),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// loop delivers until ch is closed and empty.
func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for event := range d.ch {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event and reports whether it was accepted. With DropIfFull a full buffer drops
// the event and counts it; otherwise Emit blocks until there is room or ctx ends.
func (d *Dispatcher) Emit(ctx context.Context, event Event) bool {
	if d == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
			return true
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops accepting events and waits until the buffered ones reach the sink. Safe to call
// twice.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
