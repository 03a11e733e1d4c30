package search

import (
	"context"

	"github.com/tesserae-go/tesserae/internal/g2l"
	"github.com/tesserae-go/tesserae/internal/match"
	"github.com/tesserae-go/tesserae/internal/store"
)

// greekUnit pairs a source unit's Latin-translated feature row with a
// reverse map from translated Latin index to the original Greek index
// that produced it, so the Scorer can look up the pooled Greek inverse
// frequency of spec.md §4.3 even though matching itself runs entirely in
// the Latin-index space (spec.md §4.6).
type greekUnit struct {
	translated match.UnitFeatures
	origin     map[int]int // translated latin index -> originating greek index
}

// runGreekToLatin implements the Greek-to-Latin Matcher dispatch of
// spec.md §4.6: the source side is translated into the target's Latin
// lemmata namespace before candidate generation and scoring proceed
// exactly as in §4.4/§4.5.
func (l *Lifecycle) runGreekToLatin(ctx context.Context, sr *store.Search, sourceUnits, targetUnits []store.Unit) ([]store.Match, error) {
	tables, err := l.greekTables(ctx)
	if err != nil {
		return nil, err
	}

	kind := store.FeatureKindLemmata
	latinStopwords, err := resolveStopwords(ctx, l.registry, l.freqSvc, l.store, "lat", kind,
		sr.Params.Method.LatinStopwords, sr.Params.Method.StopwordCount, sr.Params.Method.FreqBasis,
		[]string{sr.Params.Target.TextID})
	if err != nil {
		return nil, err
	}
	greekStopIdx, err := resolveStopwords(ctx, l.registry, l.freqSvc, l.store, "grc", kind,
		sr.Params.Method.GreekStopwords, sr.Params.Method.StopwordCount, sr.Params.Method.FreqBasis,
		[]string{sr.Params.Source.TextID})
	if err != nil {
		return nil, err
	}

	greekUnits := buildGreekUnits(sourceUnits, tables, greekStopIdx, latinStopwords)
	if err := l.advance(ctx, sr, 1, 1.0); err != nil {
		return nil, err
	}

	sourceFeatures := make([]match.UnitFeatures, len(greekUnits))
	for i, gu := range greekUnits {
		sourceFeatures[i] = gu.translated
	}
	targetFeatures := buildUnitFeatures(targetUnits, kind, latinStopwords)
	tgtTotal := totalWordPositions(targetUnits)

	cfg := scoreConfig{
		basis:       sr.Params.Method.DistanceBasis,
		maxDistance: sr.Params.Method.MaxDistance,
		minScore:    sr.Params.Method.MinScore,
		srcFreqFor: func(sourceIdx int) match.FrequencyLookup {
			origin := greekUnits[sourceIdx].origin
			return func(latinIdx int) (float64, error) {
				greekIdx, ok := origin[latinIdx]
				if !ok {
					return l.freqSvc.CorpusInverseFrequency(ctx, "lat", kind, latinIdx)
				}
				return l.freqSvc.GreekPooledInverseFrequency(ctx, kind, greekIdx, tables.Cotranslated[greekIdx])
			}
		},
		tgtFreqFor: func(int) match.FrequencyLookup {
			return func(idx int) (float64, error) {
				return l.freqSvc.InverseFrequency(ctx, sr.Params.Method.FreqBasis, "lat", kind, idx, sr.Params.Target.TextID, tgtTotal)
			}
		},
		tokenOf: func(idx int) (string, error) {
			// Matched-feature reporting renders Latin tokens even for the
			// translated source side (spec.md §4.6 "not 'g'").
			return l.registry.LookupToken(ctx, "lat", kind, idx)
		},
	}
	return scoreAll(ctx, sourceUnits, targetUnits, sourceFeatures, targetFeatures, cfg)
}

// buildGreekUnits translates each source unit's Greek lemmata positions
// into Latin-indexed UnitFeatures, and records which Greek index
// produced each surviving Latin index so the frequency lookup can pool
// across cotranslated Greek synonyms (spec.md §4.3, §4.6).
func buildGreekUnits(sourceUnits []store.Unit, tables *g2l.Tables, greekStopIdx, latinStopwords map[int]bool) []greekUnit {
	out := make([]greekUnit, len(sourceUnits))
	for i, u := range sourceUnits {
		posMap := toPositionMap(store.PositionsFeatures(u, store.FeatureKindLemmata))
		filtered := make(map[int][]int, len(posMap))
		for pos, indices := range posMap {
			for _, gIdx := range indices {
				if gIdx == match.PunctuationSentinel || greekStopIdx[gIdx] {
					continue
				}
				filtered[pos] = append(filtered[pos], gIdx)
			}
		}

		origin := make(map[int]int)
		for _, gIdxs := range filtered {
			for _, gIdx := range gIdxs {
				for latinIdx := range tables.GreekToLatin[gIdx] {
					if latinStopwords[latinIdx] {
						continue
					}
					if _, exists := origin[latinIdx]; !exists {
						origin[latinIdx] = gIdx
					}
				}
			}
		}

		out[i] = greekUnit{
			translated: tables.TranslateUnitFeatures(u.ID, filtered, latinStopwords),
			origin:     origin,
		}
	}
	return out
}
