package forestlog

import (
	"context"
	"sync"
)

// IndexKey is the well-known key holding the encoded list of record ids.
const IndexKey = "forest_keys"

// recordKeyPrefix prefixes every record key.
const recordKeyPrefix = "forest_"

// RecordKey returns the storage key of the record with the given id.
func RecordKey(id string) string {
	return recordKeyPrefix + id
}

// KVStore is the opaque key-value service records are persisted through.
// Get returns empty bytes, not an error, for a missing key.
type KVStore interface {
	IsAvailable(ctx context.Context) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryKVStore is an in-process KVStore.
type MemoryKVStore struct {
	mu          sync.RWMutex
	data        map[string][]byte
	unavailable bool
}

// NewMemoryKVStore creates an empty in-memory store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{data: make(map[string][]byte)}
}

// SetAvailable toggles what IsAvailable reports.
func (m *MemoryKVStore) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !ok
}

// IsAvailable reports whether the store accepts traffic.
func (m *MemoryKVStore) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.unavailable, nil
}

// Get returns a copy of the value under key.
func (m *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (m *MemoryKVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKVStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close releases nothing; it exists so MemoryKVStore satisfies io.Closer.
func (m *MemoryKVStore) Close() error {
	return nil
}
