package cache

import (
	"context"
	"sync"
)

const backendMemory = "memory"

// Memory is an unbounded in-process Store.
// Lookup and Insert hold the lock only for the map access itself.
type Memory struct {
	mu      sync.RWMutex
	entries map[int64]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[int64]string),
	}
}

// Lookup returns the URL for id or ErrCacheMiss. It never performs I/O.
func (m *Memory) Lookup(_ context.Context, id int64) (string, error) {
	m.mu.RLock()
	url, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(backendMemory).Inc()
		return "", ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendMemory).Inc()
	return url, nil
}

// Insert records url for id. Concurrent inserts for the same id are all
// accepted; the last one to take the lock wins.
func (m *Memory) Insert(_ context.Context, id int64, url string) error {
	if url == "" {
		CacheErrors.WithLabelValues(backendMemory, "insert").Inc()
		return ErrInvalidEntry
	}

	m.mu.Lock()
	m.entries[id] = url
	size := len(m.entries)
	m.mu.Unlock()

	CacheInserts.WithLabelValues(backendMemory).Inc()
	CacheEntries.WithLabelValues(backendMemory).Set(float64(size))
	return nil
}

// Len returns the number of recorded identifiers.
func (m *Memory) Len(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}
