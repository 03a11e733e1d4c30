// Package multitext implements the Multitext Engine (spec.md §4.8): given
// a prior search's matches, find every other corpus unit sharing a
// 2-combination of the match's shared feature tokens.
package multitext

import (
	"context"
	"sort"

	"github.com/tesserae-go/tesserae/internal/bigram"
	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/freq"
	"github.com/tesserae-go/tesserae/internal/store"
)

// Engine runs the Multitext Engine's bigram-union lookup over a corpus of
// texts (spec.md §4.8).
type Engine struct {
	bigram   *bigram.Store
	registry *feature.Registry
	freq     *freq.Service
}

// New wraps a bigram store, feature registry, and frequency service behind
// the Multitext Engine contract. Scoring always uses corpus-basis inverse
// frequencies regardless of the origin search's configured basis
// (original_source/tesserae/utils/multitext.py's multitext_search calls
// get_corpus_frequencies unconditionally).
func New(b *bigram.Store, r *feature.Registry, f *freq.Service) *Engine {
	return &Engine{bigram: b, registry: r, freq: f}
}

type pairKey struct {
	tokenA, tokenB string
}

// tokenPairs returns the sorted 2-combinations of a match's matched
// tokens, with each pair's tokens lexically ordered so the same pair
// always produces the same key regardless of which token came first in
// the match.
func tokenPairs(tokens []string) []pairKey {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)

	var pairs []pairKey
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			pairs = append(pairs, pairKey{tokenA: sorted[i], tokenB: sorted[j]})
		}
	}
	return pairs
}

// Run computes, per match in input order, a mapping from each shared-
// token bigram to the concatenated list of (unit, score) hits across
// every text in scope (spec.md §4.8). The union of all matches' bigrams
// is collected first so each distinct (text, bigram) lookup runs only
// once, no matter how many matches reference it.
func (e *Engine) Run(ctx context.Context, language string, kind store.FeatureKind, unitType store.UnitType, matches []store.Match, textIDs []string) ([][]store.MultiResult, error) {
	allPairs := make(map[pairKey]bool)
	matchPairs := make([][]pairKey, len(matches))
	for i, m := range matches {
		pairs := tokenPairs(m.MatchedTokens)
		matchPairs[i] = pairs
		for _, p := range pairs {
			allPairs[p] = true
		}
	}

	type pairUnits struct {
		units []store.MultiUnitScore
		ok    bool // false if either token is not registered in this namespace
	}
	lookup := make(map[pairKey]*pairUnits, len(allPairs))

	for p := range allPairs {
		idxA, errA := e.registry.LookupIndex(ctx, language, kind, p.tokenA)
		idxB, errB := e.registry.LookupIndex(ctx, language, kind, p.tokenB)
		if errA != nil || errB != nil {
			lookup[p] = &pairUnits{ok: false}
			continue
		}

		invFreqA, errA := e.freq.CorpusInverseFrequency(ctx, language, kind, idxA)
		invFreqB, errB := e.freq.CorpusInverseFrequency(ctx, language, kind, idxB)
		if errA != nil || errB != nil {
			lookup[p] = &pairUnits{ok: false}
			continue
		}

		var units []store.MultiUnitScore
		for _, textID := range textIDs {
			hits, err := e.bigram.Lookup(ctx, textID, unitType, kind, idxA, idxB, invFreqA, invFreqB)
			if err != nil {
				return nil, err
			}
			for _, h := range hits {
				units = append(units, store.MultiUnitScore{UnitID: h.UnitID, TextID: textID, Score: h.Score})
			}
		}
		lookup[p] = &pairUnits{units: units, ok: true}
	}

	results := make([][]store.MultiResult, len(matches))
	for i, pairs := range matchPairs {
		var mrs []store.MultiResult
		for _, p := range pairs {
			pu := lookup[p]
			if pu == nil || !pu.ok {
				continue
			}
			mrs = append(mrs, store.MultiResult{FeatureA: p.tokenA, FeatureB: p.tokenB, Units: pu.units})
		}
		results[i] = mrs
	}
	return results, nil
}
