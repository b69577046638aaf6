package session

import (
	"context"
	"errors"
)

// ErrBackendUnavailable wraps every I/O failure reported by a [Backend].
var ErrBackendUnavailable = errors.New("session backend unavailable")

// ErrEmptyScope is returned when a [Store] is built without a client scope.
var ErrEmptyScope = errors.New("session scope empty")

// Backend is durable key-value storage partitioned by client scope.
//
// A scope plays the role of a browser origin: entries written under one scope are never visible
// under another. Implementations must make Read a consistent snapshot and Write atomic, so a
// reader never observes a token without its username.
type Backend interface {
	// Read returns every entry stored under scope. A missing scope yields an empty map.
	Read(ctx context.Context, scope string) (map[string]string, error)
	// Write sets the given entries and removes the given keys in one atomic step.
	Write(ctx context.Context, scope string, set map[string]string, remove []string) error
	// Drop removes every entry under scope. Dropping a missing scope succeeds.
	Drop(ctx context.Context, scope string) error
}

// Store is the only reader and writer of one client's persisted session.
type Store struct {
	backend Backend
	scope   string
}

// NewStore binds backend to a single client scope.
func NewStore(backend Backend, scope string) (*Store, error) {
	if backend == nil {
		return nil, errors.New("session backend required")
	}
	if scope == "" {
		return nil, ErrEmptyScope
	}
	return &Store{backend: backend, scope: scope}, nil
}

// Scope returns the client scope this store is bound to.
func (s *Store) Scope() string {
	return s.scope
}

// Load returns the persisted session. The boolean is false when no complete session exists;
// a token without a username (or the reverse) counts as no session.
//
//	Performance: one Backend.Read.
func (s *Store) Load(ctx context.Context) (Session, bool, error) {
	entries, err := s.backend.Read(ctx, s.scope)
	if err != nil {
		return Session{}, false, err
	}

	sess := fromEntries(entries)
	if !sess.Authenticated() {
		return Session{}, false, nil
	}
	return sess, true, nil
}

// Persist writes sess. Optional fields left empty are removed so a previous identity's
// profile never leaks into the next one.
func (s *Store) Persist(ctx context.Context, sess Session) error {
	if !sess.Authenticated() {
		return errors.New("session requires token and username")
	}

	set := make(map[string]string, len(Keys))
	var remove []string
	for key, value := range sess.entries() {
		if value == "" {
			remove = append(remove, key)
			continue
		}
		set[key] = value
	}

	return s.backend.Write(ctx, s.scope, set, remove)
}

// Clear removes every persisted entry. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Drop(ctx, s.scope)
}
