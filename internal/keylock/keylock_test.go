package keylock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func mustLock(t *testing.T, l *Locker, key string) func() {
	t.Helper()
	unlock, err := l.LockContext(context.Background(), key)
	if err != nil {
		t.Fatalf("LockContext(%q): %v", key, err)
	}
	return unlock
}

func TestLock_SerializesSameKey(t *testing.T) {
	l := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := mustLock(t, l, "STMP")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50 (lost updates)", counter)
	}
	if l.Len() != 0 {
		t.Errorf("expected all entries released, %d remain", l.Len())
	}
}

func TestLock_IndependentKeys(t *testing.T) {
	l := New()
	unlockA := mustLock(t, l, "A")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := mustLock(t, l, "B")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on B blocked by lock on A")
	}
}

func TestLockContext_Timeout(t *testing.T) {
	l := New()
	unlock := mustLock(t, l, "VOC")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release, err := l.LockContext(ctx, "VOC")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if release != nil {
		t.Error("expected nil release on timeout")
	}

	unlock()
	if l.Len() != 0 {
		t.Errorf("expected entry dropped after timeout and unlock, %d remain", l.Len())
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	l := New()
	unlock := mustLock(t, l, "X")
	unlock()
	unlock()

	// Must still be acquirable exactly once.
	u2 := mustLock(t, l, "X")
	u2()
}
