package storeAuth

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/storeAuth/internal/audit"
	"github.com/MrEthical07/storeAuth/session"
	"go.uber.org/zap"
)

// Provider hands out one shared [Manager] per client scope.
//
// Managers are reference counted. The first [Provider.Acquire] of a scope creates the manager
// in the loading state and starts its status check in the background; the last release
// disposes it, after Session.ManagerIdleTimeout when configured.
//
// Build one with [Builder]. A Provider is safe for concurrent use.
type Provider struct {
	cfg     Config
	backend session.Backend
	deps    managerDeps

	mu       sync.Mutex
	managers map[string]*managerEntry
	closed   bool
	wg       sync.WaitGroup
}

type managerEntry struct {
	m    *Manager
	refs int
	idle *time.Timer
}

// Acquire returns the manager of scope and a release func that must be called once the caller
// is done with it. Calling release more than once is harmless.
//
// Values of ctx (client IP) flow into the background status check; its cancellation does not.
func (p *Provider) Acquire(ctx context.Context, scope string) (*Manager, func(), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, ErrDisposed
	}

	e, ok := p.managers[scope]
	if !ok {
		store, err := session.NewStore(p.backend, scope)
		if err != nil {
			p.mu.Unlock()
			return nil, nil, err
		}
		e = &managerEntry{m: newManager(store, p.deps)}
		p.managers[scope] = e

		p.wg.Add(1)
		go p.check(ctx, e.m)
	}
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}
	e.refs++
	p.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { p.release(scope, e) })
	}
	return e.m, release, nil
}

func (p *Provider) check(ctx context.Context, m *Manager) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Session.CheckTimeout)
	defer cancel()

	m.Init(ctx)
}

func (p *Provider) release(scope string, e *managerEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e.refs--
	if e.refs > 0 || p.closed {
		return
	}

	idle := p.cfg.Session.ManagerIdleTimeout
	if idle <= 0 {
		p.evictLocked(scope, e)
		return
	}
	e.idle = time.AfterFunc(idle, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if e.refs == 0 && p.managers[scope] == e {
			p.evictLocked(scope, e)
		}
	})
}

func (p *Provider) evictLocked(scope string, e *managerEntry) {
	if p.managers[scope] == e {
		delete(p.managers, scope)
	}
	e.m.Dispose()
}

// Store returns a session store for scope on the provider's backend, for tooling that needs
// raw access without a manager.
func (p *Provider) Store(scope string) (*session.Store, error) {
	return session.NewStore(p.backend, scope)
}

// Active returns the number of cached managers.
func (p *Provider) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.managers)
}

// Metrics returns the shared counters. It may be a disabled instance but is never nil.
func (p *Provider) Metrics() *Metrics {
	return p.deps.metrics
}

// Logger returns the provider's logger.
func (p *Provider) Logger() *zap.Logger {
	return p.deps.logger
}

// MetricsSnapshot implements the exporters' metrics source.
func (p *Provider) MetricsSnapshot() MetricsSnapshot {
	return p.deps.metrics.Snapshot()
}

// AuditDropped returns audit events lost to a full dispatcher buffer.
func (p *Provider) AuditDropped() uint64 {
	return p.deps.audit.Dropped()
}

// Close disposes every manager, waits for background checks, and flushes audit events.
// Acquire fails with [ErrDisposed] afterwards.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for scope, e := range p.managers {
		if e.idle != nil {
			e.idle.Stop()
		}
		delete(p.managers, scope)
		e.m.Dispose()
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.deps.audit.Close()
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}
