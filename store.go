package forestlog

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// StoreConfig controls RecordStore behavior. Zero values pick the defaults:
// JSONCodec, PlaceholderProtector, SystemClock, NewRecordID, no cache.
type StoreConfig struct {
	Codec     Codec
	Protector Protector
	Clock     Clock
	NewID     func(now time.Time) (string, error)
	CacheSize int // decoded records kept in memory (0=disabled)
	Logger    Logger
	Metrics   *Metrics
}

// RecordStore is an append-only collection of records over a KVStore.
// Each record lives under RecordKey(id); IndexKey enumerates the ids.
type RecordStore struct {
	kv        KVStore
	codec     Codec
	protector Protector
	clock     Clock
	newID     func(time.Time) (string, error)
	index     *IndexManager
	cache     *lru.Cache[string, Record]
	log       Logger
	metrics   *Metrics
}

// PartialWriteError is returned by Create when the record was written but
// its id could not be added to the index. The record exists under
// RecordKey(ID) and is invisible to List. Nothing is rolled back.
type PartialWriteError struct {
	ID  string
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("record %s stored but not indexed: %v", e.ID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// NewRecordStore creates a RecordStore bound to kv.
func NewRecordStore(kv KVStore, cfg StoreConfig) (*RecordStore, error) {
	if kv == nil {
		return nil, errors.New("nil KVStore")
	}
	s := &RecordStore{
		kv:        kv,
		codec:     cfg.Codec,
		protector: cfg.Protector,
		clock:     cfg.Clock,
		newID:     cfg.NewID,
		log:       orDiscard(cfg.Logger),
		metrics:   cfg.Metrics,
	}
	if s.codec == nil {
		s.codec = JSONCodec{}
	}
	if s.protector == nil {
		s.protector = PlaceholderProtector{}
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.newID == nil {
		s.newID = NewRecordID
	}
	if cfg.CacheSize > 0 {
		c, err := lru.New[string, Record](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create record cache: %w", err)
		}
		s.cache = c
	}
	s.index = NewIndexManager(kv, s.codec, s.log, s.metrics)
	return s, nil
}

// Index exposes the store's IndexManager.
func (s *RecordStore) Index() *IndexManager {
	return s.index
}

// NewRecordID returns "<unix millis>-<7 base36 chars>". The suffix comes
// from a random UUID; uniqueness is likely, not guaranteed.
func NewRecordID(now time.Time) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) < 7 {
		suffix = strings.Repeat("0", 7-len(suffix)) + suffix
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix[:7], nil
}

// List returns every readable indexed record, newest first; equal
// timestamps are ordered by id. An unavailable store yields an empty list.
// Missing or undecodable records are skipped.
func (s *RecordStore) List(ctx context.Context) ([]Record, error) {
	ok, err := s.kv.IsAvailable(ctx)
	if err != nil {
		s.log.Warn("availability check failed, listing nothing", "err", err)
		return []Record{}, nil
	}
	if !ok {
		s.log.Warn("store not available, listing nothing")
		return []Record{}, nil
	}

	ids, err := s.index.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, found, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrDecodeFault) {
				s.log.Warn("skipping undecodable record", "id", id, "err", err)
				s.metrics.skipped("corrupt")
			} else {
				s.log.Warn("skipping unreadable record", "id", id, "err", err)
				s.metrics.skipped("read_error")
			}
			continue
		}
		if !found {
			s.log.Debug("skipping missing record", "id", id)
			s.metrics.skipped("missing")
			continue
		}
		out = append(out, rec)
	}

	slices.SortFunc(out, func(a, b Record) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	s.metrics.listed(len(out))
	return out, nil
}

// Get loads one record by id, indexed or not.
func (s *RecordStore) Get(ctx context.Context, id string) (Record, bool, error) {
	if s.cache != nil {
		if rec, ok := s.cache.Get(id); ok {
			return rec, true, nil
		}
	}
	raw, err := s.kv.Get(ctx, RecordKey(id))
	if err != nil {
		return Record{}, false, fmt.Errorf("read record %s: %w", id, err)
	}
	if len(raw) == 0 {
		return Record{}, false, nil
	}
	rec, err := s.codec.DecodeRecord(raw)
	if err != nil {
		s.metrics.decodeFault("record")
		return Record{}, false, fmt.Errorf("record %s: %w", id, err)
	}
	rec.ID = id
	if s.cache != nil {
		s.cache.Add(id, rec)
	}
	return rec, true, nil
}

// Create protects d, writes it as a new record and appends its id to the
// index. A record write failure leaves the index untouched. An index
// failure after a successful record write returns *PartialWriteError.
func (s *RecordStore) Create(ctx context.Context, d Draft) (Record, error) {
	start := time.Now()
	rec, result, err := s.create(ctx, d)
	s.metrics.created(result, time.Since(start).Seconds())
	return rec, err
}

func (s *RecordStore) create(ctx context.Context, d Draft) (Record, string, error) {
	if err := d.Validate(); err != nil {
		return Record{}, "invalid", err
	}
	d = d.normalize()

	ok, err := s.kv.IsAvailable(ctx)
	if err != nil {
		return Record{}, "unavailable", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !ok {
		return Record{}, "unavailable", ErrUnavailable
	}

	payload, err := s.protector.Protect(d)
	if err != nil {
		return Record{}, "error", fmt.Errorf("protect draft: %w", err)
	}

	now := s.clock.Now()
	id, err := s.newID(now)
	if err != nil {
		return Record{}, "error", err
	}

	rec := Record{
		ID:               id,
		ProtectedPayload: payload,
		CreatedAt:        now.Unix(),
		Location:         d.Location,
		Year:             d.Year,
		ForestType:       d.ForestType,
		ChangeType:       d.ChangeType,
	}

	raw, err := s.codec.EncodeRecord(rec)
	if err != nil {
		return Record{}, "error", fmt.Errorf("encode record: %w", err)
	}
	if err := s.kv.Set(ctx, RecordKey(id), raw); err != nil {
		s.log.Error("record write failed", "id", id, "err", err)
		return Record{}, "write_error", wrapWrite("write record", err)
	}

	if err := s.index.Append(ctx, id); err != nil {
		s.log.Error("record stored but not indexed", "id", id, "key", RecordKey(id), "err", err)
		return Record{}, "unindexed", &PartialWriteError{ID: id, Err: err}
	}

	if s.cache != nil {
		s.cache.Add(id, rec)
	}
	s.log.Info("record created", "id", id, "location", rec.Location, "year", rec.Year)
	return rec, "ok", nil
}

// Reveal recovers the draft behind a record's protected payload.
func (s *RecordStore) Reveal(rec Record) (Draft, error) {
	return s.protector.Unprotect(rec.ProtectedPayload)
}
