package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocks_ExclusiveOverlappingSets(t *testing.T) {
	locks := newKeyedLocks()
	var active int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		ids := []string{"a", "b"}
		if i%2 == 1 {
			ids = []string{"b", "a", "b"}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(ids...)
			assert.Equal(t, int32(1), atomic.AddInt32(&active, 1))
			time.Sleep(100 * time.Microsecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Zero(t, locks.held())
}

func TestKeyedLocks_SharedThenExclusive(t *testing.T) {
	locks := newKeyedLocks()
	r1 := locks.RLock("a")

	second := make(chan func())
	go func() { second <- locks.RLock("a") }()
	var r2 func()
	select {
	case r2 = <-second:
	case <-time.After(time.Second):
		t.Fatal("readers must not block each other")
	}

	acquired := make(chan func())
	go func() { acquired <- locks.Lock("a") }()
	select {
	case <-acquired:
		t.Fatal("writer acquired while readers hold the key")
	case <-time.After(20 * time.Millisecond):
	}

	r1()
	r2()
	select {
	case unlock := <-acquired:
		unlock()
	case <-time.After(time.Second):
		t.Fatal("writer never acquired after readers released")
	}
	assert.Zero(t, locks.held())
}

func TestKeyedLocks_UnlockIsIdempotent(t *testing.T) {
	locks := newKeyedLocks()
	unlock := locks.Lock("x", "y")
	assert.Equal(t, 2, locks.held())
	unlock()
	unlock()
	assert.Zero(t, locks.held())

	other := locks.Lock("x")
	other()
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedUnique([]string{"c", "a", "b", "a"}))
	assert.Empty(t, sortedUnique(nil))
}
