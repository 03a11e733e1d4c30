// Package freq implements the Frequency Service (spec.md §4.3): inverse
// feature frequency under a "corpus" or "texts" basis, cached per
// (language, kind) until invalidated by ingest or deletion of a text of
// that language.
package freq

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/store"
)

// cacheSize bounds the number of (language, kind) corpus-frequency
// snapshots held at once; a corpus realistically touches a handful of
// languages and kinds, so this is generous headroom, not a tuning knob.
const cacheSize = 64

// corpusSnapshot is the cached Σ-count basis for one (language, kind).
type corpusSnapshot struct {
	counts map[int]int
	total  int
}

// Service computes inverse frequency under both bases of spec.md §4.3.
type Service struct {
	store *store.SQLiteStore

	mu    sync.Mutex
	cache *lru.Cache[string, *corpusSnapshot]
}

// New wraps store behind the Frequency Service contract.
func New(s *store.SQLiteStore) *Service {
	c, _ := lru.New[string, *corpusSnapshot](cacheSize)
	return &Service{store: s, cache: c}
}

func cacheKey(language string, kind store.FeatureKind) string {
	return language + "\x1f" + string(kind)
}

// Invalidate drops the cached corpus snapshot for (language, kind) —
// called after any ingest or deletion of a text of that language (spec.md
// §4.3 "cached ... until a text of that language is ingested or deleted").
func (s *Service) Invalidate(language string, kind store.FeatureKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(cacheKey(language, kind))
}

func (s *Service) snapshot(ctx context.Context, language string, kind store.FeatureKind) (*corpusSnapshot, error) {
	key := cacheKey(language, kind)

	s.mu.Lock()
	if snap, ok := s.cache.Get(key); ok {
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	counts, err := s.store.CorpusFeatureCounts(ctx, language, kind)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	snap := &corpusSnapshot{counts: counts, total: total}

	s.mu.Lock()
	s.cache.Add(key, snap)
	s.mu.Unlock()
	return snap, nil
}

// CorpusInverseFrequency returns 1 / (count(i) / Σ count(·)) for feature
// index i in (language, kind), computed lazily and cached (spec.md §4.3
// "corpus" basis).
func (s *Service) CorpusInverseFrequency(ctx context.Context, language string, kind store.FeatureKind, index int) (float64, error) {
	snap, err := s.snapshot(ctx, language, kind)
	if err != nil {
		return 0, err
	}
	count, ok := snap.counts[index]
	if !ok || count == 0 {
		return 0, tesserr.New(tesserr.ErrCodeUndefinedFrequency,
			fmt.Sprintf("feature index %d has zero corpus occurrences", index), nil)
	}
	if snap.total == 0 {
		return 0, tesserr.New(tesserr.ErrCodeUndefinedFrequency, "empty corpus", nil)
	}
	return float64(snap.total) / float64(count), nil
}

// TextsInverseFrequency returns (total word positions in text) /
// (occurrences of feature index i in text). A feature index with zero
// count in the text has undefined inverse frequency (spec.md §4.3
// "texts" basis) — callers must never query such a position.
func (s *Service) TextsInverseFrequency(ctx context.Context, language string, kind store.FeatureKind, index int, textID string, totalWordPositions int) (float64, error) {
	count, found, err := s.store.FeatureCount(ctx, language, kind, index, textID)
	if err != nil {
		return 0, err
	}
	if !found || count == 0 {
		return 0, tesserr.New(tesserr.ErrCodeUndefinedFrequency,
			fmt.Sprintf("feature index %d has zero occurrences in text %s", index, textID), nil)
	}
	return float64(totalWordPositions) / float64(count), nil
}

// InverseFrequency dispatches to the basis named by the search's
// freq_basis parameter.
func (s *Service) InverseFrequency(ctx context.Context, basis store.FrequencyBasis, language string, kind store.FeatureKind, index int, textID string, totalWordPositions int) (float64, error) {
	switch basis {
	case store.FrequencyBasisCorpus:
		return s.CorpusInverseFrequency(ctx, language, kind, index)
	case store.FrequencyBasisTexts:
		return s.TextsInverseFrequency(ctx, language, kind, index, textID, totalWordPositions)
	default:
		return 0, tesserr.Validation("unknown frequency basis: "+string(basis), nil)
	}
}

// TopNByFrequency returns the N most frequent feature indices of
// (language, kind) under the corpus basis — used by the stopword
// auto-derivation of spec.md §6 ("stopwords is an integer N").
func (s *Service) TopNByFrequency(ctx context.Context, language string, kind store.FeatureKind, n int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}
	snap, err := s.snapshot(ctx, language, kind)
	if err != nil {
		return nil, err
	}
	type pair struct {
		idx   int
		count int
	}
	pairs := make([]pair, 0, len(snap.counts))
	for idx, count := range snap.counts {
		pairs = append(pairs, pair{idx, count})
	}
	// Selection sort over the (typically small) top-N window avoids
	// pulling in sort.Slice for a descending-count, ascending-index
	// tie-break that a stable comparator would need two passes for anyway.
	for i := 0; i < len(pairs) && i < n; i++ {
		best := i
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].count > pairs[best].count ||
				(pairs[j].count == pairs[best].count && pairs[j].idx < pairs[best].idx) {
				best = j
			}
		}
		pairs[i], pairs[best] = pairs[best], pairs[i]
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = pairs[i].idx
	}
	return out, nil
}

// GreekPooledInverseFrequency computes the Greek inverse frequency of
// index g against the pooled count of g and every Greek index that
// translates to the same Latin tokens (spec.md §4.3 "Greek-to-Latin
// variant"). cotranslated is the set of such Greek indices (excluding g
// itself), supplied by internal/g2l's prepared translation tables.
func (s *Service) GreekPooledInverseFrequency(ctx context.Context, kind store.FeatureKind, g int, cotranslated []int) (float64, error) {
	snap, err := s.snapshot(ctx, "grc", kind)
	if err != nil {
		return 0, err
	}
	pooled := snap.counts[g]
	for _, other := range cotranslated {
		pooled += snap.counts[other]
	}
	if pooled == 0 {
		return 0, tesserr.New(tesserr.ErrCodeUndefinedFrequency, "zero pooled Greek count", nil)
	}
	if snap.total == 0 {
		return 0, tesserr.New(tesserr.ErrCodeUndefinedFrequency, "empty Greek corpus", nil)
	}
	return float64(snap.total) / float64(pooled), nil
}
