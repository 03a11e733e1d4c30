package match

// FindCandidates computes the sparse intersection S·Tᵀ over source and
// target unit rows and returns every pair whose shared non-stopword
// feature count is >= 2 (spec.md §4.4 "Candidate generation" — "Value = 1
// is rejected"). Built via a feature-index inverted index rather than a
// literal dense product, since only overlapping columns ever contribute.
func FindCandidates(sourceUnits, targetUnits []UnitFeatures) []Candidate {
	targetsByFeature := make(map[int][]int) // feature index -> target slice indices
	for ti, tu := range targetUnits {
		for idx := range tu.Positions {
			targetsByFeature[idx] = append(targetsByFeature[idx], ti)
		}
	}

	counts := make(map[[2]int]int)
	for si, su := range sourceUnits {
		for idx := range su.Positions {
			for _, ti := range targetsByFeature[idx] {
				counts[[2]int{si, ti}]++
			}
		}
	}

	var candidates []Candidate
	for pair, count := range counts {
		if count >= 2 {
			candidates = append(candidates, Candidate{SourceIdx: pair[0], TargetIdx: pair[1], Shared: count})
		}
	}
	return candidates
}

// SharedFeatures returns the feature indices present in both unit rows.
func SharedFeatures(src, tgt UnitFeatures) []int {
	var shared []int
	for idx := range src.Positions {
		if _, ok := tgt.Positions[idx]; ok {
			shared = append(shared, idx)
		}
	}
	return shared
}

// RecoverPositionPairs walks each unit's position table to materialize
// the (source_position, target_position) pairs where a shared feature
// index occurs in both, one pair per shared index per position
// combination (spec.md §4.4 "Shared-feature recovery").
func RecoverPositionPairs(src, tgt UnitFeatures, shared []int) []PositionPair {
	var pairs []PositionPair
	for _, idx := range shared {
		for _, sp := range src.Positions[idx] {
			for _, tp := range tgt.Positions[idx] {
				pairs = append(pairs, PositionPair{Source: sp, Target: tp, Feature: idx})
			}
		}
	}
	return pairs
}

// SidePositions collapses position pairs into the distinct position set
// each side contributed, with one representative feature index per
// position (the feature that produced it; if several shared features
// land on the same position, the last one recorded wins).
func SidePositions(pairs []PositionPair) (sourceFeatureAt, targetFeatureAt map[int]int) {
	sourceFeatureAt = make(map[int]int)
	targetFeatureAt = make(map[int]int)
	for _, p := range pairs {
		sourceFeatureAt[p.Source] = p.Feature
		targetFeatureAt[p.Target] = p.Feature
	}
	return sourceFeatureAt, targetFeatureAt
}
