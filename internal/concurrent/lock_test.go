package concurrent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sinclairtarget/git-who-server/internal/concurrent"
)

func TestKeyedMutexExcludes(t *testing.T) {
	var m concurrent.KeyedMutex
	ctx := context.Background()

	var wg sync.WaitGroup
	inside := 0
	maxInside := 0
	var counterMu sync.Mutex

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := m.Lock(ctx, "repo")
			if err != nil {
				t.Errorf("Lock() returned error: %v", err)
				return
			}
			defer unlock()

			counterMu.Lock()
			inside += 1
			maxInside = max(maxInside, inside)
			counterMu.Unlock()

			time.Sleep(time.Millisecond)

			counterMu.Lock()
			inside -= 1
			counterMu.Unlock()
		}()
	}

	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most 1 holder but saw %d", maxInside)
	}

	if m.Len() != 0 {
		t.Errorf("expected no keys left but found %d", m.Len())
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var m concurrent.KeyedMutex
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock(a) returned error: %v", err)
	}
	defer unlockA()

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	unlockB, err := m.Lock(timeout, "b")
	if err != nil {
		t.Fatalf("Lock(b) should not wait on a: %v", err)
	}
	unlockB()
}

func TestKeyedMutexContextDone(t *testing.T) {
	var m concurrent.KeyedMutex
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "repo")
	if err != nil {
		t.Fatalf("Lock() returned error: %v", err)
	}

	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	_, err = m.Lock(timeout, "repo")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded but got %v", err)
	}

	unlock()
	unlock() // Second call is a no-op

	if m.Len() != 0 {
		t.Errorf("expected no keys left but found %d", m.Len())
	}

	unlock, err = m.Lock(ctx, "repo")
	if err != nil {
		t.Fatalf("Lock() after release returned error: %v", err)
	}
	unlock()
}
