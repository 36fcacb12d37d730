package forestlog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Pebble panics on use after Close; reads and writes check first.
var errPebbleClosed = errors.New("pebble store closed")

// PebbleKVStore is a KVStore backed by a Pebble LSM database.
// Close waits for in-flight reads and writes.
type PebbleKVStore struct {
	db    *pebble.DB
	write *pebble.WriteOptions

	mu     sync.RWMutex
	closed bool
}

// OpenPebbleKVStore opens (creating if needed) a Pebble database at dir.
// opts may be nil.
func OpenPebbleKVStore(dir string, opts *pebble.Options) (*PebbleKVStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleKVStore{db: db, write: pebble.Sync}, nil
}

// IsAvailable reports whether the database is still open.
func (s *PebbleKVStore) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed, nil
}

// Get returns a copy of the value under key, or nil if absent.
func (s *PebbleKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errPebbleClosed
	}
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	return out, nil
}

// Set writes value under key with a synced write.
func (s *PebbleKVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errPebbleClosed
	}
	if err := s.db.Set([]byte(key), value, s.write); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close closes the database. Repeated calls are no-ops.
func (s *PebbleKVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
