// Package match implements the Matcher Core and Scorer (spec.md §4.4,
// §4.5): sparse boolean-matrix intersection over feature-index columns,
// shared-feature recovery, and the span/frequency distance-gated Tesserae
// log-score.
package match

import "sort"

// PunctuationSentinel is the reserved feature index always filtered out
// regardless of the stopword list (spec.md §4.4 "A feature index flagged
// as punctuation ... is always filtered out").
const PunctuationSentinel = -1

// UnitFeatures is a unit's boolean feature row, inverted into
// feature-index -> sorted word positions, with stopwords and the
// punctuation sentinel already excluded (spec.md §4.4 "Encoding").
type UnitFeatures struct {
	UnitID    int64
	Positions map[int][]int // feature index -> positions where it occurs
}

// BuildUnitFeatures inverts a unit's position->feature-indices table into
// a feature->positions row, dropping stopwords and the punctuation
// sentinel (spec.md §4.4 "S[u, i] = 1 iff ... i ∉ stopwords").
func BuildUnitFeatures(unitID int64, positionFeatures map[int][]int, stopwords map[int]bool) UnitFeatures {
	uf := UnitFeatures{UnitID: unitID, Positions: make(map[int][]int)}
	for pos, indices := range positionFeatures {
		for _, idx := range indices {
			if idx == PunctuationSentinel || stopwords[idx] {
				continue
			}
			uf.Positions[idx] = append(uf.Positions[idx], pos)
		}
	}
	for idx := range uf.Positions {
		sort.Ints(uf.Positions[idx])
	}
	return uf
}

// Features returns the set of feature indices present in this unit's row.
func (u UnitFeatures) Features() map[int]bool {
	out := make(map[int]bool, len(u.Positions))
	for idx := range u.Positions {
		out[idx] = true
	}
	return out
}

// Candidate is a unit pair whose shared non-stopword feature count is >=
// 2 (spec.md §4.4 "Candidate generation").
type Candidate struct {
	SourceIdx int // index into the source []UnitFeatures slice
	TargetIdx int
	Shared    int // number of shared feature indices (S·Tᵀ entry value)
}

// PositionPair is one (source_position, target_position) pair sharing
// feature index Feature (spec.md §4.4 "Shared-feature recovery").
type PositionPair struct {
	Source  int
	Target  int
	Feature int
}
