package forestlog

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// IndexManager owns the IndexKey entry: the ordered list of every record id.
//
// Append is a plain read-modify-write of the whole list. It is not
// transactional: two appends racing on the same store can both read the
// old list and the later write wins, dropping the other id. Append is the
// only place that writes IndexKey, so a compare-and-set store could be
// adopted here without touching callers.
type IndexManager struct {
	kv      KVStore
	codec   Codec
	log     Logger
	metrics *Metrics
}

// NewIndexManager creates an IndexManager over kv using codec.
// log and metrics may be nil.
func NewIndexManager(kv KVStore, codec Codec, log Logger, metrics *Metrics) *IndexManager {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &IndexManager{kv: kv, codec: codec, log: orDiscard(log), metrics: metrics}
}

// ReadAll returns the indexed ids in append order. A missing or undecodable
// index reads as empty; only transport errors from the store are returned.
func (im *IndexManager) ReadAll(ctx context.Context) ([]string, error) {
	raw, err := im.kv.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	ids, err := im.codec.DecodeIndex(raw)
	if err != nil {
		im.log.Warn("index decode fault, treating as empty", "key", IndexKey, "bytes", len(raw), "err", err)
		im.metrics.decodeFault("index")
		return []string{}, nil
	}
	return ids, nil
}

// Append adds id to the end of the index unless it is already present.
func (im *IndexManager) Append(ctx context.Context, id string) error {
	ids, err := im.ReadAll(ctx)
	if err != nil {
		im.metrics.appended("error")
		return err
	}
	if slices.Contains(ids, id) {
		im.metrics.appended("duplicate")
		return nil
	}
	ids = append(ids, id)

	raw, err := im.codec.EncodeIndex(ids)
	if err != nil {
		im.metrics.appended("error")
		return fmt.Errorf("encode index: %w", err)
	}
	if err := im.kv.Set(ctx, IndexKey, raw); err != nil {
		im.metrics.appended("error")
		return wrapWrite("write index", err)
	}
	im.metrics.appended("ok")
	return nil
}

// wrapWrite tags a Set failure with ErrWriteFailure while keeping the
// collaborator's error (and any ErrUserDeclined / ErrNoSigner) reachable.
func wrapWrite(op string, err error) error {
	if errors.Is(err, ErrWriteFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrWriteFailure, err)
}
