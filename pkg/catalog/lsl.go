package catalog

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/catalogd/pkg/catalogerr"
)

// lifecycleState is the LSL's coarse lifecycle.
type lifecycleState int32

const (
	stateConstructed lifecycleState = iota
	stateStarting
	stateRunning
	stateClosing
)

// lsl is the Leader State & Lock: a lifecycle state plus a per-request
// leader-shared lock. Every catalog operation acquires the lock shared;
// a follower-to-leader transition (the Loader) acquires it exclusively.
type lsl struct {
	state atomic.Int32

	mu          sync.RWMutex // the leader-shared lock
	term        uint64       // current believed raft term
	readyTerm   uint64       // term for which the Loader last completed
	isLeaderFn  func() bool
}

func newLSL(isLeaderFn func() bool) *lsl {
	l := &lsl{isLeaderFn: isLeaderFn}
	l.state.Store(int32(stateConstructed))
	return l
}

func (l *lsl) setState(s lifecycleState) { l.state.Store(int32(s)) }
func (l *lsl) currentState() lifecycleState { return lifecycleState(l.state.Load()) }

// admission is the shared guard returned by TryAdmit; the caller releases
// it exactly once, regardless of whether the operation then succeeds or
// fails.
type admission struct{ release func() }

// Release returns the leader-shared lock.
func (a *admission) Release() {
	if a != nil && a.release != nil {
		a.release()
	}
}

// TryAdmit implements the admission predicate: request is
// served iff the lifecycle state is RUNNING, this node is leader for a
// term whose Loader has finished, and the lock was acquired without
// blocking (a blocking attempt means the Loader holds it exclusively).
func (l *lsl) TryAdmit() (*admission, error) {
	if l.currentState() != stateRunning {
		return nil, catalogerr.New(catalogerr.KindServiceUnavailable, "catalog manager not initialized").WithCode("CATALOG_MANAGER_NOT_INITIALIZED")
	}
	if !l.mu.TryRLock() {
		return nil, catalogerr.New(catalogerr.KindServiceUnavailable, "still loading")
	}
	if !l.isLeaderFn() {
		l.mu.RUnlock()
		return nil, catalogerr.New(catalogerr.KindIllegalState, "not the leader")
	}
	term := l.term
	if l.readyTerm != term {
		l.mu.RUnlock()
		return nil, catalogerr.New(catalogerr.KindLeaderNotReadyToServe, "loader has not finished for term %d", term)
	}
	return &admission{release: l.mu.RUnlock}, nil
}

// BeginLoad acquires the LSL exclusively ahead of a Loader rebuild for the
// given term. The returned function must be called once the rebuild is
// complete (successfully or not); on success it publishes readyTerm=term.
func (l *lsl) BeginLoad(term uint64) func(success bool) {
	l.mu.Lock()
	l.term = term
	return func(success bool) {
		if success {
			l.readyTerm = term
		}
		l.mu.Unlock()
	}
}

// NotifyTermObserved updates the believed term, holding the exclusive
// lock only for that assignment and without running the Loader or
// publishing a ready term; used when this node is not leader, so that a later
// TryAdmit correctly reports IllegalState rather than a stale ready-term
// match.
func (l *lsl) NotifyTermObserved(term uint64) {
	l.mu.Lock()
	l.term = term
	l.mu.Unlock()
}
