package forestlog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// FileKVStore implements KVStore with one file per key in a directory.
// Layout:
//   - {dir}/kv.lock: advisory lock serializing writers across processes
//   - {dir}/v-{base64url(key)}: value bytes
//
// Writes go to a temp file that is synced and renamed over the value file,
// so readers see either the old or the new value, never a torn one.
type FileKVStore struct {
	dir      string
	lockFile *os.File
	mu       sync.RWMutex
}

const (
	lockFileName = "kv.lock"
	valuePrefix  = "v-"
	tempPrefix   = ".tmp-"
)

// OpenFileKVStore creates or opens a file-based store in the given directory.
func OpenFileKVStore(dir string) (*FileKVStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	lockFile, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	return &FileKVStore{dir: dir, lockFile: lockFile}, nil
}

func (s *FileKVStore) valuePath(key string) string {
	return filepath.Join(s.dir, valuePrefix+base64.RawURLEncoding.EncodeToString([]byte(key)))
}

// IsAvailable reports whether the directory is still reachable.
func (s *FileKVStore) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return false, fmt.Errorf("stat directory: %w", err)
	}
	return info.IsDir(), nil
}

// Get reads the value file for key; a missing file reads as nil.
func (s *FileKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.valuePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open value file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read value file: %w", err)
	}
	return data, nil
}

// Set replaces the value file for key atomically.
func (s *FileKVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)

	tmp, err := os.CreateTemp(s.dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	n, err := tmp.Write(value)
	if err != nil {
		cleanup()
		return fmt.Errorf("write value: %w", err)
	}
	if n != len(value) {
		cleanup()
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(value))
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync value: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close value: %w", err)
	}
	if err := os.Rename(tmpName, s.valuePath(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename value: %w", err)
	}
	return nil
}

// Keys lists the stored keys in ascending order.
func (s *FileKVStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name, ok := strings.CutPrefix(e.Name(), valuePrefix)
		if !ok || e.IsDir() {
			continue
		}
		k, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			continue
		}
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the lock file.
func (s *FileKVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
