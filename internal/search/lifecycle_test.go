package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/bigram"
	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/freq"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/internal/unit"
)

func newTestLifecycle(t *testing.T) (*Lifecycle, *store.SQLiteStore, *feature.Registry) {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	b, err := bigram.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	registry := feature.New(s)
	return New(s, unit.New(s), registry, freq.New(s), b), s, registry
}

// seedPoem ingests a four-token Latin line as one "line" unit, interning
// each token under the form kind and recording its per-text occurrence
// count (texts-basis frequency needs at least one count row per index).
func seedPoem(t *testing.T, ctx context.Context, s *store.SQLiteStore, registry *feature.Registry, textID string, tokens []string) {
	t.Helper()
	require.NoError(t, s.SaveText(ctx, &store.Text{ID: textID, Language: "lat", Hash: textID, UnitTypes: []store.UnitType{store.UnitTypeLine}}))

	features := make(map[int][]int, len(tokens))
	for pos, token := range tokens {
		idx, err := registry.Intern(ctx, "lat", store.FeatureKindForm, token)
		require.NoError(t, err)
		features[pos] = []int{idx}
		require.NoError(t, registry.CountInc(ctx, "lat", store.FeatureKindForm, idx, textID, 1))
	}

	positions := make([]int, len(tokens))
	for i := range tokens {
		positions[i] = i
	}
	u := store.Unit{
		Ordinal: 0,
		Tags:    []string{textID + " 1.1"},
		Snippet: textID,
		Tokens:  positions,
		Features: map[store.FeatureKind]map[int][]int{
			store.FeatureKindForm: features,
		},
	}
	require.NoError(t, s.PutTextUnits(ctx, textID, store.UnitTypeLine, []store.Unit{u}))
}

func vanillaParams(sourceID, targetID string) store.SearchParams {
	return store.SearchParams{
		Source: store.TextRef{TextID: sourceID, UnitType: store.UnitTypeLine},
		Target: store.TextRef{TextID: targetID, UnitType: store.UnitTypeLine},
		Method: store.Method{
			Name:          store.SearchTypeVanilla,
			Feature:       store.FeatureKindForm,
			FreqBasis:     store.FrequencyBasisTexts,
			MaxDistance:   10,
			DistanceBasis: store.DistanceBasisSpan,
			MinScore:      -1000,
		},
	}
}

func TestExecute_VanillaSpanSearch_FindsMatch(t *testing.T) {
	// Given: two Latin lines sharing "arma" and "cano" (spec.md S1)
	lc, s, registry := newTestLifecycle(t)
	ctx := context.Background()
	seedPoem(t, ctx, s, registry, "src-text", []string{"arma", "virumque", "cano", "troiae"})
	seedPoem(t, ctx, s, registry, "tgt-text", []string{"arma", "virum", "cano", "roma"})

	// When: running a vanilla span-distance search over texts basis
	sr, err := lc.Execute(ctx, store.SearchTypeVanilla, vanillaParams("src-text", "tgt-text"))
	require.NoError(t, err)

	// Then: the search completes and reports exactly one match sharing
	// both non-unique tokens
	require.Equal(t, store.SearchStatusDone, sr.Status)
	matches, total, err := lc.Retrieve(ctx, sr.ID, "score", "desc", 10, 1)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, matches, 1)
	assert.ElementsMatch(t, []string{"arma", "cano"}, matches[0].MatchedTokens)
}

func TestExecute_ReusesCachedSearch(t *testing.T) {
	// Given: an already-completed search
	lc, s, registry := newTestLifecycle(t)
	ctx := context.Background()
	seedPoem(t, ctx, s, registry, "src-text", []string{"arma", "virumque", "cano", "troiae"})
	seedPoem(t, ctx, s, registry, "tgt-text", []string{"arma", "virum", "cano", "roma"})
	params := vanillaParams("src-text", "tgt-text")
	first, err := lc.Execute(ctx, store.SearchTypeVanilla, params)
	require.NoError(t, err)

	// When: executing the identical parameters again
	second, err := lc.Execute(ctx, store.SearchTypeVanilla, params)
	require.NoError(t, err)

	// Then: the cached search is reused, not recomputed
	assert.Equal(t, first.ID, second.ID)
}

func TestExecute_RejectsNonPositiveMaxDistance(t *testing.T) {
	// Given: a max_distance of zero
	lc, _, _ := newTestLifecycle(t)
	params := vanillaParams("a", "b")
	params.Method.MaxDistance = 0

	// When/Then: Execute rejects it before any work runs
	_, err := lc.Execute(context.Background(), store.SearchTypeVanilla, params)
	require.Error(t, err)
}

func TestDelete_RemovesSearchAndMatches(t *testing.T) {
	// Given: a completed search with matches
	lc, s, registry := newTestLifecycle(t)
	ctx := context.Background()
	seedPoem(t, ctx, s, registry, "src-text", []string{"arma", "virumque", "cano", "troiae"})
	seedPoem(t, ctx, s, registry, "tgt-text", []string{"arma", "virum", "cano", "roma"})
	sr, err := lc.Execute(ctx, store.SearchTypeVanilla, vanillaParams("src-text", "tgt-text"))
	require.NoError(t, err)

	// When: deleting it
	require.NoError(t, lc.Delete(ctx, sr.ID))

	// Then: it is gone
	_, err = s.GetSearch(ctx, sr.ID)
	assert.Error(t, err)
}
