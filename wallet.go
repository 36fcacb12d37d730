package forestlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Signer authorizes writes to the ledger on behalf of the connected account.
// A refusal by the account holder should return an error satisfying
// IsUserDeclined.
type Signer interface {
	Authorize(ctx context.Context, key string, value []byte) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, key string, value []byte) error

// Authorize calls f.
func (f SignerFunc) Authorize(ctx context.Context, key string, value []byte) error {
	return f(ctx, key, value)
}

// SignedKVStore gates Set on a connected Signer. Reads pass through.
type SignedKVStore struct {
	KVStore

	mu     sync.RWMutex
	signer Signer
}

// NewSignedKVStore wraps kv. The store starts disconnected.
func NewSignedKVStore(kv KVStore) *SignedKVStore {
	return &SignedKVStore{KVStore: kv}
}

// Connect installs the signer used for subsequent writes.
func (s *SignedKVStore) Connect(signer Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = signer
}

// Disconnect drops the current signer.
func (s *SignedKVStore) Disconnect() {
	s.Connect(nil)
}

// Connected reports whether a signer is installed.
func (s *SignedKVStore) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer != nil
}

// Set authorizes the write with the signer, then forwards it.
func (s *SignedKVStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.RLock()
	signer := s.signer
	s.mu.RUnlock()

	if signer == nil {
		return ErrNoSigner
	}
	if err := signer.Authorize(ctx, key, value); err != nil {
		if IsUserDeclined(err) && !errors.Is(err, ErrUserDeclined) {
			return fmt.Errorf("authorize %s: %w: %w", key, ErrUserDeclined, err)
		}
		return fmt.Errorf("authorize %s: %w", key, err)
	}
	return s.KVStore.Set(ctx, key, value)
}
