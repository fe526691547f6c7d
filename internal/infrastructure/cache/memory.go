// Package cache holds a small in-process expiring store used for session
// state.
package cache

import (
	"sync"
	"time"
)

const janitorInterval = time.Minute

type item struct {
	value    string
	expireAt time.Time
}

// MemoryStore is an in-memory key-value store with per-entry expiration.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]item
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryStore creates a store and starts its expiry janitor.
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		items: make(map[string]item),
		stop:  make(chan struct{}),
	}
	go ms.janitor()
	return ms
}

// Set stores a value that expires after ttl.
func (ms *MemoryStore) Set(key, value string, ttl time.Duration) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.items[key] = item{value: value, expireAt: time.Now().Add(ttl)}
}

// Get returns the value for key, reporting false once it has expired.
func (ms *MemoryStore) Get(key string) (string, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	it, ok := ms.items[key]
	if !ok || time.Now().After(it.expireAt) {
		return "", false
	}
	return it.value, true
}

// Delete removes a key.
func (ms *MemoryStore) Delete(key string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.items, key)
}

// Close stops the janitor.
func (ms *MemoryStore) Close() {
	ms.once.Do(func() { close(ms.stop) })
}

func (ms *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stop:
			return
		case now := <-ticker.C:
			ms.mu.Lock()
			for key, it := range ms.items {
				if now.After(it.expireAt) {
					delete(ms.items, key)
				}
			}
			ms.mu.Unlock()
		}
	}
}
