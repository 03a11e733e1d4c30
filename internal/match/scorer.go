package match

import (
	"math"

	"github.com/tesserae-go/tesserae/internal/store"
)

// FrequencyLookup resolves the inverse frequency of a feature index,
// dispatched by internal/freq.Service under whichever basis the search
// selected.
type FrequencyLookup func(featureIndex int) (float64, error)

// ScoredMatch is a candidate pair that survived both gates of spec.md
// §4.5, with its distance components and final score.
type ScoredMatch struct {
	SourceDistance  int
	TargetDistance  int
	Score           float64
	SourcePositions map[int]int // position -> feature index
	TargetPositions map[int]int
}

// Score applies the distance model, max-distance gate, Tesserae log-score,
// and min-score gate of spec.md §4.5 to one candidate's recovered shared
// positions. Returns ok=false if either gate rejects the pair.
func Score(srcFeatureAt, tgtFeatureAt map[int]int, basis store.DistanceBasis, maxDistance int, minScore float64, srcFreq, tgtFreq FrequencyLookup) (ScoredMatch, bool, error) {
	srcDist, err := distance(srcFeatureAt, basis, srcFreq)
	if err != nil {
		return ScoredMatch{}, false, err
	}
	tgtDist, err := distance(tgtFeatureAt, basis, tgtFreq)
	if err != nil {
		return ScoredMatch{}, false, err
	}
	if srcDist <= 0 || tgtDist <= 0 {
		return ScoredMatch{}, false, nil
	}
	if srcDist+tgtDist > maxDistance {
		return ScoredMatch{}, false, nil
	}

	srcSum, err := sumInverseFreq(srcFeatureAt, srcFreq)
	if err != nil {
		return ScoredMatch{}, false, err
	}
	tgtSum, err := sumInverseFreq(tgtFeatureAt, tgtFreq)
	if err != nil {
		return ScoredMatch{}, false, err
	}

	score := math.Log(srcSum+tgtSum) - math.Log(float64(srcDist+tgtDist))
	if score < minScore {
		return ScoredMatch{}, false, nil
	}

	return ScoredMatch{
		SourceDistance:  srcDist,
		TargetDistance:  tgtDist,
		Score:           score,
		SourcePositions: srcFeatureAt,
		TargetPositions: tgtFeatureAt,
	}, true, nil
}

// distance computes one side's distance per spec.md §4.5's span or
// frequency model.
func distance(featureAt map[int]int, basis store.DistanceBasis, freq FrequencyLookup) (int, error) {
	switch basis {
	case store.DistanceBasisSpan:
		return spanDistance(featureAt), nil
	case store.DistanceBasisFrequency:
		return frequencyDistance(featureAt, freq)
	default:
		return 0, nil
	}
}

// spanDistance is max - min + 1 over the shared positions of one side
// (spec.md §4.5 "span"). A single shared position yields distance 1.
func spanDistance(featureAt map[int]int) int {
	if len(featureAt) == 0 {
		return 0
	}
	min, max := -1, -1
	for pos := range featureAt {
		if min == -1 || pos < min {
			min = pos
		}
		if max == -1 || pos > max {
			max = pos
		}
	}
	return max - min + 1
}

// frequencyDistance picks the two shared positions whose feature
// instances have the largest inverse frequency (the two rarest) and returns their
// absolute position difference + 1 (spec.md §4.5 "frequency"). A side
// with fewer than two shared positions falls back to distance 1, the
// same value a single-position span side yields.
func frequencyDistance(featureAt map[int]int, freq FrequencyLookup) (int, error) {
	if len(featureAt) < 2 {
		return 1, nil
	}

	type scored struct {
		pos  int
		freq float64
	}
	var entries []scored
	for pos, idx := range featureAt {
		f, err := freq(idx)
		if err != nil {
			return 0, err
		}
		entries = append(entries, scored{pos: pos, freq: f})
	}

	// Selection of the two largest inverse frequencies ("two rarest words").
	best0, best1 := 0, 1
	if entries[best1].freq > entries[best0].freq {
		best0, best1 = best1, best0
	}
	for i := 2; i < len(entries); i++ {
		if entries[i].freq > entries[best0].freq {
			best1 = best0
			best0 = i
		} else if entries[i].freq > entries[best1].freq {
			best1 = i
		}
	}

	diff := entries[best0].pos - entries[best1].pos
	if diff < 0 {
		diff = -diff
	}
	return diff + 1, nil
}

func sumInverseFreq(featureAt map[int]int, freq FrequencyLookup) (float64, error) {
	sum := 0.0
	for _, idx := range featureAt {
		f, err := freq(idx)
		if err != nil {
			return 0, err
		}
		sum += f
	}
	return sum, nil
}
