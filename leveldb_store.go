package forestlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBKVStore is a KVStore backed by goleveldb.
type LevelDBKVStore struct {
	db *leveldb.DB
}

// OpenLevelDBKVStore opens (creating if needed) a LevelDB database at path.
func OpenLevelDBKVStore(path string) (*LevelDBKVStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDBKVStore{db: db}, nil
}

// NewMemLevelDBKVStore returns a LevelDB store held entirely in memory.
func NewMemLevelDBKVStore() (*LevelDBKVStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDBKVStore{db: db}, nil
}

// IsAvailable reports whether the database is open.
func (s *LevelDBKVStore) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := s.db.GetProperty("leveldb.stats"); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value under key, or nil if absent.
func (s *LevelDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// Set writes value under key with a synced write.
func (s *LevelDBKVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *LevelDBKVStore) Close() error {
	return s.db.Close()
}
