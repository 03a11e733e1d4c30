// Package search implements the Search Lifecycle (spec.md §4.9): the
// orchestration layer that turns a SearchParams record into persisted
// Matches (and, for multitext, MultiResults) by driving the Feature
// Registry, Unit Index, Frequency Service, Matcher Core, Scorer,
// Greek-to-Latin Matcher and Multitext Engine to completion, with the
// state machine, canonical cache key, deletion cascade and 28-day GC
// sweep spec.md §4.9 requires.
package search

import (
	"github.com/tesserae-go/tesserae/internal/match"
	"github.com/tesserae-go/tesserae/internal/store"
)

// stageNames are the progress stages reported for a vanilla or
// greek_to_latin search (spec.md §4.9 "Progress is reported as a list
// of stages with fractional completion").
var stageNames = []string{"load_units", "resolve_stopwords", "score", "persist"}

// multitextStageNames are the progress stages of a multitext search.
var multitextStageNames = []string{"load_matches", "lookup_bigrams", "persist"}

func initialStages(names []string) []store.ProgressStage {
	stages := make([]store.ProgressStage, len(names))
	for i, n := range names {
		stages[i] = store.ProgressStage{Name: n}
	}
	return stages
}

// scoreConfig bundles everything a scoring partition needs that does not
// vary per candidate: the distance/score gates and the per-side
// frequency lookups (spec.md §4.5). srcFreqFor/tgtFreqFor are indexed by
// source/target slice position because the Greek-to-Latin variant's
// source-side lookup depends on which unit produced a translated index
// (spec.md §4.3 "pooled count"); the vanilla variant ignores the index
// and returns the same closure every time.
type scoreConfig struct {
	basis       store.DistanceBasis
	maxDistance int
	minScore    float64
	srcFreqFor  func(sourceIdx int) match.FrequencyLookup
	tgtFreqFor  func(targetIdx int) match.FrequencyLookup
	tokenOf     func(featureIdx int) (string, error)
}

func toPositionMap(pf []store.PositionFeatures) map[int][]int {
	out := make(map[int][]int, len(pf))
	for _, p := range pf {
		out[p.Position] = p.Indices
	}
	return out
}

func firstTag(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return tags[0]
}

func totalWordPositions(units []store.Unit) int {
	total := 0
	for _, u := range units {
		total += len(u.Tokens)
	}
	return total
}
