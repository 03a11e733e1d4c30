package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/store"
)

func TestParseFeatureKind_AcceptsEveryKnownKind(t *testing.T) {
	// Given/When/Then: each of the five feature kinds round-trips
	for _, raw := range []string{"form", "lemmata", "sound", "semantic", "semantic+lemmata"} {
		got, err := parseFeatureKind(raw)
		require.NoError(t, err)
		assert.Equal(t, store.FeatureKind(raw), got)
	}
}

func TestParseFeatureKind_RejectsUnknownKind(t *testing.T) {
	// Given/When/Then: an unrecognized feature kind is an error
	_, err := parseFeatureKind("syllable")
	require.Error(t, err)
}

func TestBuildSearchParams_BuildsVanillaMethod(t *testing.T) {
	// Given: a full set of search options
	opts := searchOptions{
		sourceText: "lucan_bellum_civile", sourceUnit: "line",
		targetText: "vergil_aeneid", targetUnit: "phrase",
		method: "vanilla", feature: "lemmata",
		stopwordCount: 10, freqBasis: "corpus",
		maxDistance: 10, distanceBasis: "frequency", minScore: 2,
	}

	// When: building the search params
	searchType, params, err := buildSearchParams(opts)

	// Then: every option lands in its corresponding SearchParams field
	require.NoError(t, err)
	assert.Equal(t, store.SearchTypeVanilla, searchType)
	assert.Equal(t, "lucan_bellum_civile", params.Source.TextID)
	assert.Equal(t, store.UnitTypeLine, params.Source.UnitType)
	assert.Equal(t, "vergil_aeneid", params.Target.TextID)
	assert.Equal(t, store.UnitTypePhrase, params.Target.UnitType)
	assert.Equal(t, store.FeatureKindLemmata, params.Method.Feature)
	assert.Equal(t, 10, params.Method.MaxDistance)
	assert.Equal(t, 2.0, params.Method.MinScore)
}

func TestBuildSearchParams_RejectsUnknownMethod(t *testing.T) {
	// Given/When/Then: an unrecognized method name is an error
	_, _, err := buildSearchParams(searchOptions{method: "fuzzy", feature: "lemmata", sourceUnit: "line", targetUnit: "line"})
	require.Error(t, err)
}

func TestRunSearch_RequiresSourceAndTarget(t *testing.T) {
	// Given/When/Then: missing --source/--target is rejected before an engine is opened
	err := runSearch(newSearchCmd(), searchOptions{})
	require.Error(t, err)
}
