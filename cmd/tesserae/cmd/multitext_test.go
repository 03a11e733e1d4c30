package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMultitext_RequiresResultsID(t *testing.T) {
	// Given/When/Then: missing --results is rejected before an engine is opened
	err := runMultitext(newMultitextCmd(), multitextOptions{scope: []string{"ovid_met"}})
	require.Error(t, err)
}

func TestRunMultitext_RequiresScope(t *testing.T) {
	// Given/When/Then: an empty --scope is rejected before an engine is opened
	err := runMultitext(newMultitextCmd(), multitextOptions{resultsID: "search-1"})
	require.Error(t, err)
}

func TestRunMultitext_RejectsUnknownFeature(t *testing.T) {
	// Given/When/Then: an unrecognized --feature is rejected before an engine is opened
	err := runMultitext(newMultitextCmd(), multitextOptions{
		resultsID: "search-1",
		scope:     []string{"ovid_met"},
		feature:   "syllable",
	})
	require.Error(t, err)
}
