// Package cowe provides a generic copy-on-write wrapper used to hold every
// catalog entity (Namespace, Table, Tablet, UDType, Role, ClusterConfig).
//
// Each Entity pairs a committed record (the value visible to readers) with
// an optional dirty draft that only the holder of the write lock may
// mutate. Readers never block behind a writer holding a draft; a writer
// must commit or abort before another writer can proceed.
package cowe

import "sync"

// Entity is a copy-on-write wrapper around a value of type T.
type Entity[T any] struct {
	writeMu   sync.Mutex   // held by the single writer from LockForWrite to Commit/Abort
	mu        sync.RWMutex // guards committed; held exclusively only while Commit swaps it
	committed T
	draft     *T
	hasDraft  bool
}

// New wraps committed as a freshly committed Entity with no draft.
func New[T any](committed T) *Entity[T] {
	return &Entity[T]{committed: committed}
}

// ReadGuard exposes the committed record to a reader. It holds the Entity's
// read lock until Release is called.
type ReadGuard[T any] struct {
	e     *Entity[T]
	value T
}

// Value returns the committed record as of lock_for_read.
func (g *ReadGuard[T]) Value() T { return g.value }

// Release releases the read lock.
func (g *ReadGuard[T]) Release() { g.e.mu.RUnlock() }

// LockForRead returns a read guard exposing the committed record. It never
// blocks a concurrent reader or a writer holding a dirty draft, since the
// draft is invisible outside the exclusive lock.
func (e *Entity[T]) LockForRead() *ReadGuard[T] {
	e.mu.RLock()
	return &ReadGuard[T]{e: e, value: e.committed}
}

// WriteGuard exposes both the committed record (for reference) and the
// dirty draft (for mutation) to the single writer holding the exclusive
// lock.
type WriteGuard[T any] struct {
	e         *Entity[T]
	committed T
	resolved  bool
}

// Committed returns the record as of the last commit, for reference.
func (g *WriteGuard[T]) Committed() T { return g.committed }

// Draft returns a pointer to the mutable draft.
func (g *WriteGuard[T]) Draft() *T { return g.e.draft }

// Commit replaces the committed record with the draft and releases the
// exclusive lock. Readers acquiring lock_for_read after Commit returns see
// the new value atomically.
func (g *WriteGuard[T]) Commit() {
	if g.resolved {
		return
	}
	g.e.mu.Lock()
	g.e.committed = *g.e.draft
	g.e.mu.Unlock()
	g.e.draft = nil
	g.e.hasDraft = false
	g.resolved = true
	g.e.writeMu.Unlock()
}

// Abort discards the draft and releases the exclusive lock without
// changing the committed record. Every error path out of a handler that
// holds a draft MUST call Abort if it has not already called Commit.
func (g *WriteGuard[T]) Abort() {
	if g.resolved {
		return
	}
	g.e.draft = nil
	g.e.hasDraft = false
	g.resolved = true
	g.e.writeMu.Unlock()
}

// LockForWrite blocks until the exclusive lock is acquired. If no draft
// exists yet, the committed record is copied into a fresh draft. The
// caller must eventually call Commit or Abort on the returned guard.
func (e *Entity[T]) LockForWrite() *WriteGuard[T] {
	e.writeMu.Lock()
	if !e.hasDraft {
		d := e.committed
		e.draft = &d
		e.hasDraft = true
	}
	return &WriteGuard[T]{e: e, committed: e.committed}
}
