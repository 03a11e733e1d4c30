// Package feature implements the Feature Registry (spec.md §4.1): interning
// of (language, kind, token) symbols into dense, monotonically increasing
// indices per namespace, with per-text occurrence counts.
package feature

import (
	"context"
	"hash/fnv"
	"sync"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/store"
)

// stripes is the number of mutex stripes guarding concurrent interns. A
// fixed power-of-two count keeps the hash-to-stripe mapping cheap while
// bounding contention across the handful of (language, kind) namespaces
// any single corpus actually has.
const stripes = 64

// Registry serializes feature interning per (language, kind) namespace on
// top of the SQLite-backed store, so that two ingest workers racing to
// intern the same token still resolve to one index (spec.md §5 "Shared-
// resource policy").
type Registry struct {
	store *store.SQLiteStore
	mu    [stripes]sync.Mutex
}

// New wraps store behind the Feature Registry contract.
func New(s *store.SQLiteStore) *Registry {
	return &Registry{store: s}
}

func (r *Registry) lock(language string, kind store.FeatureKind) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(language))
	_, _ = h.Write([]byte(":"))
	_, _ = h.Write([]byte(kind))
	idx := h.Sum32() % stripes
	r.mu[idx].Lock()
	return r.mu[idx].Unlock
}

// Intern returns the index for (language, kind, token), allocating the
// next dense index in that namespace if the token is unseen (spec.md §4.1
// "intern"). Concurrent calls for the same namespace are serialized by
// this Registry; the store's UNIQUE index is the final backstop.
func (r *Registry) Intern(ctx context.Context, language string, kind store.FeatureKind, token string) (int, error) {
	if err := validateKind(kind); err != nil {
		return 0, err
	}
	unlock := r.lock(language, kind)
	defer unlock()
	return r.store.InternFeature(ctx, language, kind, token)
}

// LookupIndex returns the index for (language, kind, token), or a
// NotFound error if the token was never interned (spec.md §4.1
// "lookup_index").
func (r *Registry) LookupIndex(ctx context.Context, language string, kind store.FeatureKind, token string) (int, error) {
	if err := validateKind(kind); err != nil {
		return 0, err
	}
	return r.store.LookupFeatureIndex(ctx, language, kind, token)
}

// LookupToken is the inverse of LookupIndex (spec.md §4.1 "lookup_token").
func (r *Registry) LookupToken(ctx context.Context, language string, kind store.FeatureKind, index int) (string, error) {
	if err := validateKind(kind); err != nil {
		return "", err
	}
	return r.store.LookupFeatureToken(ctx, language, kind, index)
}

// IterIndices returns every Feature of (language, kind) in ascending index
// order (spec.md §4.1 "iter_indices").
func (r *Registry) IterIndices(ctx context.Context, language string, kind store.FeatureKind) ([]store.Feature, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	return r.store.IterFeatures(ctx, language, kind)
}

// CountInc adds n to a feature index's occurrence count within one text
// (spec.md §4.1 "count_inc"). n must be non-negative (spec.md §7).
func (r *Registry) CountInc(ctx context.Context, language string, kind store.FeatureKind, index int, textID string, n int) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	return r.store.IncrementFeatureCount(ctx, language, kind, index, textID, n)
}

var validKinds = map[store.FeatureKind]bool{
	store.FeatureKindForm:            true,
	store.FeatureKindLemmata:         true,
	store.FeatureKindSound:           true,
	store.FeatureKindSemantic:        true,
	store.FeatureKindSemanticLemmata: true,
}

func validateKind(kind store.FeatureKind) error {
	if !validKinds[kind] {
		return tesserr.Validation("unknown feature kind: "+string(kind), nil)
	}
	return nil
}
