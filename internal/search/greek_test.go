package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/store"
)

// seedLemmataUnit interns each token under (language, lemmata) and
// persists a single unit carrying those positions, mirroring seedPoem
// but for the lemmata feature kind the Greek-to-Latin path matches on.
func seedLemmataUnit(t *testing.T, ctx context.Context, lc *Lifecycle, textID, language string, tokens []string) {
	t.Helper()
	require.NoError(t, lc.store.SaveText(ctx, &store.Text{ID: textID, Language: language, Hash: textID, UnitTypes: []store.UnitType{store.UnitTypeLine}}))

	features := make(map[int][]int, len(tokens))
	for pos, token := range tokens {
		idx, err := lc.registry.Intern(ctx, language, store.FeatureKindLemmata, token)
		require.NoError(t, err)
		features[pos] = []int{idx}
		require.NoError(t, lc.registry.CountInc(ctx, language, store.FeatureKindLemmata, idx, textID, 1))
	}
	positions := make([]int, len(tokens))
	for i := range tokens {
		positions[i] = i
	}
	u := store.Unit{
		Ordinal:  0,
		Tags:     []string{textID + " 1.1"},
		Snippet:  textID,
		Tokens:   positions,
		Features: map[store.FeatureKind]map[int][]int{store.FeatureKindLemmata: features},
	}
	require.NoError(t, lc.store.PutTextUnits(ctx, textID, store.UnitTypeLine, []store.Unit{u}))
}

func TestExecute_GreekToLatin_TranslatesAndMatches(t *testing.T) {
	// Given: a Greek source unit {ἀνήρ, θεός} and a Latin target unit
	// whose lemmata are the seed dictionary's translations {vir, deus}
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	seedLemmataUnit(t, ctx, lc, "grc-text", "grc", []string{"ἀνήρ", "θεός", "πόλεμος"})
	seedLemmataUnit(t, ctx, lc, "lat-text", "lat", []string{"vir", "deus", "navis"})

	params := store.SearchParams{
		Source: store.TextRef{TextID: "grc-text", UnitType: store.UnitTypeLine},
		Target: store.TextRef{TextID: "lat-text", UnitType: store.UnitTypeLine},
		Method: store.Method{
			Name:          store.SearchTypeGreekToLatin,
			Feature:       store.FeatureKindLemmata,
			FreqBasis:     store.FrequencyBasisTexts,
			MaxDistance:   10,
			DistanceBasis: store.DistanceBasisSpan,
			MinScore:      -1000,
		},
	}

	// When: running the greek_to_latin search
	sr, err := lc.Execute(ctx, store.SearchTypeGreekToLatin, params)
	require.NoError(t, err)

	// Then: the translated source matches the target on "vir" and "deus",
	// reported as Latin tokens (spec.md §4.6)
	require.Equal(t, store.SearchStatusDone, sr.Status)
	matches, total, err := lc.Retrieve(ctx, sr.ID, "score", "desc", 10, 1)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.ElementsMatch(t, []string{"vir", "deus"}, matches[0].MatchedTokens)
}
