// Package bigram implements the Bigram Store (spec.md §4.7): a durable
// keyed index of (min-feature-index, max-feature-index) -> unit ids,
// recorded per (text, unit-type, feature-kind), backed by a single
// embedded dgraph-io/badger/v4 instance per base directory — badger
// stands in for the original per-shard SQLite tables as the "equivalent
// embedded indexed-KV engine".
package bigram

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofrs/flock"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/store"
)

// flushThreshold is the batched writer's default in-memory buffer size
// before it flushes to badger (spec.md §4.7 "default ≈ 10,000 rows").
const flushThreshold = 10000

// Store persists bigram occurrences in a single badger instance, keyed
// `bigram:<text-id>:<unit-type>:<kind>:<min-idx>:<max-idx>:<unit-id>` so a
// point lookup by (min-idx, max-idx) is a prefix scan (spec.md §4.7
// "physical layout must support fast lookup by (min-index, max-index)").
type Store struct {
	db   *badger.DB
	lock *flock.Flock
	path string
}

// Open opens (creating if necessary) the badger instance at baseDir,
// guarded by a gofrs/flock directory lock so concurrent ingest of
// different texts is safe (spec.md §4.7/§5).
func Open(baseDir string) (*Store, error) {
	lockPath := filepath.Join(baseDir, ".bigram.lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, tesserr.Internal("failed to acquire bigram store lock", err)
	}
	if !locked {
		return nil, tesserr.New(tesserr.ErrCodeInternal, "bigram store already locked by another process", nil)
	}

	opts := badger.DefaultOptions(filepath.Join(baseDir, "bigrams"))
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		_ = fl.Unlock()
		return nil, tesserr.Internal("failed to open bigram store", err)
	}

	return &Store{db: db, lock: fl, path: baseDir}, nil
}

// Close flushes any pending value-log garbage collection, closes badger,
// and releases the directory lock.
func (s *Store) Close() error {
	if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		// best-effort; a failed GC pass does not lose data
	}
	closeErr := s.db.Close()
	_ = s.lock.Unlock()
	return closeErr
}

// key composes the canonical bigram key (spec.md §3 "canonical bigram
// key (text, unit_type, feature_kind, min(idx1,idx2), max(idx1,idx2))"),
// with the owning unit id as a disambiguating suffix.
func key(textID string, unitType store.UnitType, kind store.FeatureKind, minIdx, maxIdx int, unitID int64) []byte {
	return []byte(fmt.Sprintf("bigram:%s:%s:%s:%d:%d:%d", textID, unitType, kind, minIdx, maxIdx, unitID))
}

// prefix composes the (min-idx, max-idx) prefix shared by every unit
// recording a given bigram in a given (text, unit-type, kind).
func prefix(textID string, unitType store.UnitType, kind store.FeatureKind, minIdx, maxIdx int) []byte {
	return []byte(fmt.Sprintf("bigram:%s:%s:%s:%d:%d:", textID, unitType, kind, minIdx, maxIdx))
}

// textPrefix is the catch-all prefix for every key belonging to a text,
// used by Unregister (spec.md §4.7 "Unregistering a text deletes all its
// shards").
func textPrefix(textID string) []byte {
	return []byte(fmt.Sprintf("bigram:%s:", textID))
}

// Writer batches bigram rows for one (text, unit-type) ingest pass,
// flushing to badger when its in-memory buffer exceeds flushThreshold
// (spec.md §4.7). Not safe for concurrent use by multiple goroutines —
// one ingest worker owns one Writer for one text.
type Writer struct {
	store    *Store
	textID   string
	unitType store.UnitType
	buf      []row
	mu       sync.Mutex
}

type row struct {
	kind           store.FeatureKind
	minIdx, maxIdx int
	unitID         int64
	pos1, pos2     int
}

// NewWriter starts a batched writer for one (text, unit-type) ingest pass.
func (s *Store) NewWriter(textID string, unitType store.UnitType) *Writer {
	return &Writer{store: s, textID: textID, unitType: unitType}
}

// Record enumerates the ordered 2-combination (idxA, idxB) of feature
// indices co-occurring in unitID at positions pos1 < pos2, canonicalizing
// the key by sorting the two indices (spec.md §4.7 "canonicalize the pair
// by sorting the two indices") while storing the positions in the order
// they occurred, independent of that sort (spec.md §3 BigramEntry: value
// is (unit-id, pos₁, pos₂), pos₁ the earlier position). Only the first
// occurrence of a canonical pair per unit is kept by the caller (internal/
// ingest), which de-duplicates via a per-unit seen set before calling
// Record — this method itself performs no dedup so that a caller's
// explicit re-Record (e.g. retry) is still correct.
func (w *Writer) Record(kind store.FeatureKind, idxA, idxB int, pos1, pos2 int, unitID int64) error {
	minIdx, maxIdx := idxA, idxB
	if minIdx > maxIdx {
		minIdx, maxIdx = maxIdx, minIdx
	}
	w.mu.Lock()
	w.buf = append(w.buf, row{kind: kind, minIdx: minIdx, maxIdx: maxIdx, unitID: unitID, pos1: pos1, pos2: pos2})
	shouldFlush := len(w.buf) >= flushThreshold
	w.mu.Unlock()

	if shouldFlush {
		return w.Flush()
	}
	return nil
}

// Flush writes every buffered row to badger and clears the buffer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	pending := w.buf
	w.buf = nil
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	wb := w.store.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range pending {
		k := key(w.textID, w.unitType, r.kind, r.minIdx, r.maxIdx, r.unitID)
		v := []byte(fmt.Sprintf("%d:%d", r.pos1, r.pos2))
		if err := wb.Set(k, v); err != nil {
			return tesserr.Internal("failed to stage bigram write", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return tesserr.Internal("failed to flush bigram batch", err)
	}
	return nil
}

// Close flushes any remaining buffered rows.
func (w *Writer) Close() error {
	return w.Flush()
}

// Hit is one unit found to carry a looked-up bigram, scored per spec.md
// §4.7's Query: `ln( Σ (1/freq) ) − ln( |pos₁ − pos₂| )`.
type Hit struct {
	UnitID int64
	Score  float64
}

// Lookup returns every unit recorded against a (text, unit-type, kind,
// min-idx, max-idx) bigram (spec.md §4.7 "fast lookup by (min-index,
// max-index)"), scored from its stored (pos₁, pos₂) and the caller-
// supplied inverse frequencies of idxA and idxB (spec.md §4.7 Query:
// `lookup(text, unit-type, kind, pair_set, inv_freqs)`).
func (s *Store) Lookup(ctx context.Context, textID string, unitType store.UnitType, kind store.FeatureKind, idxA, idxB int, invFreqA, invFreqB float64) ([]Hit, error) {
	minIdx, maxIdx := idxA, idxB
	if minIdx > maxIdx {
		minIdx, maxIdx = maxIdx, minIdx
	}
	pfx := prefix(textID, unitType, kind, minIdx, maxIdx)
	invFreqSum := invFreqA + invFreqB

	var hits []Hit
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pfx
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
			item := it.Item()
			k := string(item.Key())
			idx := strings.LastIndex(k, ":")
			if idx < 0 {
				continue
			}
			unitID, err := strconv.ParseInt(k[idx+1:], 10, 64)
			if err != nil {
				continue
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pos1, pos2, ok := parsePositions(val)
			if !ok {
				continue
			}

			dist := pos2 - pos1
			if dist <= 0 {
				continue
			}
			score := math.Log(invFreqSum) - math.Log(float64(dist))
			hits = append(hits, Hit{UnitID: unitID, Score: score})
		}
		return nil
	})
	if err != nil {
		return nil, tesserr.Internal("bigram lookup failed", err)
	}
	return hits, nil
}

// parsePositions decodes a bigram value of the form "pos1:pos2" written by
// Flush.
func parsePositions(val []byte) (pos1, pos2 int, ok bool) {
	parts := strings.SplitN(string(val), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	p1, err1 := strconv.Atoi(parts[0])
	p2, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return p1, p2, true
}

// Unregister deletes every shard belonging to a text (spec.md §4.7
// "Unregistering a text deletes all its shards").
func (s *Store) Unregister(ctx context.Context, textID string) error {
	pfx := textPrefix(textID)
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pfx
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
