package search

import (
	"context"
	"sort"

	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/freq"
	"github.com/tesserae-go/tesserae/internal/store"
)

// resolveStopwords turns a Method's stopword setting into the set of
// feature indices the Matcher Core must exclude (spec.md §6: "stopwords:
// list of normalized tokens (or integer count, triggering automatic
// derivation of the top-N most frequent features of the chosen kind from
// the chosen basis")). An explicit token list is interned and looked up
// directly; an integer count derives the top-N by the search's
// freq_basis, pooling the two texts when basis is "texts".
func resolveStopwords(ctx context.Context, registry *feature.Registry, freqSvc *freq.Service, s *store.SQLiteStore,
	language string, kind store.FeatureKind, tokens []string, count int, basis store.FrequencyBasis, textIDs []string) (map[int]bool, error) {

	if count <= 0 {
		return tokenSetToIndices(ctx, registry, language, kind, tokens)
	}

	var ranked []int
	var err error
	switch basis {
	case store.FrequencyBasisCorpus:
		ranked, err = freqSvc.TopNByFrequency(ctx, language, kind, count)
	default: // texts
		ranked, err = topNAcrossTexts(ctx, registry, s, language, kind, textIDs, count)
	}
	if err != nil {
		return nil, err
	}

	out := make(map[int]bool, len(ranked))
	for _, idx := range ranked {
		out[idx] = true
	}
	return out, nil
}

func tokenSetToIndices(ctx context.Context, registry *feature.Registry, language string, kind store.FeatureKind, tokens []string) (map[int]bool, error) {
	out := make(map[int]bool, len(tokens))
	for _, token := range tokens {
		idx, err := registry.LookupIndex(ctx, language, kind, token)
		if err != nil {
			// A stopword that was never interned contributes nothing to
			// matching anyway; skip it rather than fail the search.
			continue
		}
		out[idx] = true
	}
	return out, nil
}

// topNAcrossTexts derives the top-N most frequent feature indices pooled
// across the given texts — the "texts" basis variant of stopword
// auto-derivation (spec.md §6 "... the two involved texts").
func topNAcrossTexts(ctx context.Context, registry *feature.Registry, s *store.SQLiteStore, language string, kind store.FeatureKind, textIDs []string, n int) ([]int, error) {
	feats, err := registry.IterIndices(ctx, language, kind)
	if err != nil {
		return nil, err
	}

	type pair struct {
		idx   int
		count int
	}
	pairs := make([]pair, 0, len(feats))
	for _, f := range feats {
		total := 0
		for _, textID := range textIDs {
			count, found, err := s.FeatureCount(ctx, language, kind, f.Index, textID)
			if err != nil {
				return nil, err
			}
			if found {
				total += count
			}
		}
		if total > 0 {
			pairs = append(pairs, pair{f.Index, total})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].idx < pairs[j].idx
	})
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = pairs[i].idx
	}
	return out, nil
}
