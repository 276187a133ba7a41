package cowe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int
}

func TestLockForReadNeverBlocksOnDraft(t *testing.T) {
	e := New(record{Name: "t1", Count: 0})

	wg := e.LockForWrite()
	wg.Draft().Count = 99

	done := make(chan struct{})
	go func() {
		rg := e.LockForRead()
		assert.Equal(t, 0, rg.Value().Count, "reader must see committed, not draft")
		rg.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock_for_read must not block behind a dirty writer")
	}
	<-done

	wg.Abort()
}

func TestCommitMakesDraftVisible(t *testing.T) {
	e := New(record{Name: "t1", Count: 0})

	wg := e.LockForWrite()
	wg.Draft().Count = 42
	wg.Commit()

	rg := e.LockForRead()
	defer rg.Release()
	assert.Equal(t, 42, rg.Value().Count)
}

func TestAbortDiscardsDraft(t *testing.T) {
	e := New(record{Name: "t1", Count: 7})

	wg := e.LockForWrite()
	wg.Draft().Count = 999
	wg.Abort()

	rg := e.LockForRead()
	defer rg.Release()
	assert.Equal(t, 7, rg.Value().Count)
}

func TestCommitAndAbortAreIdempotentNoOps(t *testing.T) {
	e := New(record{Count: 1})
	wg := e.LockForWrite()
	wg.Draft().Count = 2
	wg.Commit()
	require.NotPanics(t, func() {
		wg.Commit()
		wg.Abort()
	})
	rg := e.LockForRead()
	defer rg.Release()
	assert.Equal(t, 2, rg.Value().Count)
}

func TestWriteIsExclusive(t *testing.T) {
	e := New(record{Count: 0})
	var mu sync.Mutex
	order := make([]int, 0, 2)

	wg1 := e.LockForWrite()

	unblocked := make(chan struct{})
	go func() {
		wg2 := e.LockForWrite()
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		wg2.Commit()
		close(unblocked)
	}()

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	wg1.Commit()

	<-unblocked
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2}, order)
}
