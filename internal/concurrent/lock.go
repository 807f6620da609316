// Coordinates access to shared working copies between concurrent requests.
package concurrent

import (
	"context"
	"sync"
)

// A set of mutexes identified by string keys. The zero value is ready to use.
//
// Entries are dropped once nobody holds or waits for them, so the set does not
// grow with the number of distinct keys ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int // Holders plus waiters
}

// Blocks until the lock for key is acquired or ctx is done. On success,
// returns a function that releases the lock; calling it more than once is a
// no-op.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = map[string]*keyLock{}
	}

	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs += 1
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}

	logger().Debug("acquired lock", "key", key)

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			<-l.sem
			m.release(key, l)
			logger().Debug("released lock", "key", key)
		})
	}
	return unlock, nil
}

// Number of keys currently held or waited on.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}

func (m *KeyedMutex) release(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs -= 1
	if l.refs == 0 {
		delete(m.locks, key)
	}
}
