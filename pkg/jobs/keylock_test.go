package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerialisesSameKey(t *testing.T) {
	var lock KeyLock
	unlock := lock.Lock("student-1")

	acquired := make(chan struct{})
	go func() {
		release := lock.Lock("student-1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the key was locked")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, lock.Held("student-1"))

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the key")
	}
	assert.Eventually(t, func() bool { return lock.Held("student-1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestKeyLockIndependentKeys(t *testing.T) {
	var lock KeyLock
	unlockA := lock.Lock("a")
	defer unlockA()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lock.Lock("b")()
	}()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distinct keys must not block each other")
	}
}
