package g2l

import (
	"context"

	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/match"
	"github.com/tesserae-go/tesserae/internal/store"
)

// Tables holds the two translation indices the Matcher Core and
// Frequency Service need for a Greek-to-Latin search (spec.md §4.6
// "Preparation"):
//   - GreekToLatin: Greek lemma index -> set of Latin lemma indices.
//   - Cotranslated: Greek lemma index -> other Greek indices sharing at
//     least one Latin translation, used by the Frequency Service's
//     pooled inverse frequency (spec.md §4.3).
type Tables struct {
	GreekToLatin map[int]map[int]bool
	Cotranslated map[int][]int
}

// Prepare interns every dictionary entry's Greek and Latin lemmas via the
// Feature Registry (lemmata kind) and builds both translation tables
// (spec.md §4.6 "Build Greek-index -> Latin-index-set" and "Build
// Greek-index -> other-Greek-indices-with-shared-Latin-translation").
func Prepare(ctx context.Context, dict *Dictionary, registry *feature.Registry) (*Tables, error) {
	latinToGreek := make(map[int][]int)
	greekToLatin := make(map[int]map[int]bool)

	for _, greekLemma := range dict.Lemmas() {
		greekIdx, err := registry.Intern(ctx, "grc", store.FeatureKindLemmata, greekLemma)
		if err != nil {
			return nil, err
		}
		latinLemmas := dict.Translate(greekLemma)
		latinSet := make(map[int]bool, len(latinLemmas))
		for _, latinLemma := range latinLemmas {
			latinIdx, err := registry.Intern(ctx, "lat", store.FeatureKindLemmata, latinLemma)
			if err != nil {
				return nil, err
			}
			latinSet[latinIdx] = true
			latinToGreek[latinIdx] = append(latinToGreek[latinIdx], greekIdx)
		}
		greekToLatin[greekIdx] = latinSet
	}

	cotranslated := make(map[int][]int)
	for greekIdx, latinSet := range greekToLatin {
		seen := make(map[int]bool)
		for latinIdx := range latinSet {
			for _, other := range latinToGreek[latinIdx] {
				if other == greekIdx || seen[other] {
					continue
				}
				seen[other] = true
				cotranslated[greekIdx] = append(cotranslated[greekIdx], other)
			}
		}
	}

	return &Tables{GreekToLatin: greekToLatin, Cotranslated: cotranslated}, nil
}

// TranslateUnitFeatures converts a Greek unit's position->lemma-indices
// table into a Latin-indexed UnitFeatures row by translating each
// position's Greek lemma indices into the union of their Latin-lemma
// indices, filtered by Latin stopwords (spec.md §4.6 "construct the
// source matrix by translating each Greek position's lemmata indices
// into the union of their Latin-lemma indices").
func (t *Tables) TranslateUnitFeatures(unitID int64, greekPositionFeatures map[int][]int, latinStopwords map[int]bool) match.UnitFeatures {
	translated := make(map[int][]int)
	for pos, greekIndices := range greekPositionFeatures {
		for _, gIdx := range greekIndices {
			for latinIdx := range t.GreekToLatin[gIdx] {
				if latinStopwords[latinIdx] {
					continue
				}
				translated[pos] = append(translated[pos], latinIdx)
			}
		}
	}
	return match.BuildUnitFeatures(unitID, translated, nil)
}
