package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/store"
)

func TestParseUnitTypes_AcceptsKnownTypes(t *testing.T) {
	// Given/When: parsing a mix of known unit type names
	got, err := parseUnitTypes([]string{"Line", " phrase "})

	// Then: both resolve to their store.UnitType constants
	require.NoError(t, err)
	assert.Equal(t, []store.UnitType{store.UnitTypeLine, store.UnitTypePhrase}, got)
}

func TestParseUnitTypes_RejectsUnknownType(t *testing.T) {
	// Given/When/Then: an unrecognized unit type is an error, not silently dropped
	_, err := parseUnitTypes([]string{"paragraph"})
	require.Error(t, err)
}

func TestNewIngestCmd_RequiresPathOrManifest(t *testing.T) {
	// Given: the ingest command with neither a path nor --manifest
	cmd := newIngestCmd()
	cmd.SetArgs([]string{"--id", "vergil_aen", "--language", "latin"})

	// When: executing
	err := cmd.Execute()

	// Then: it reports the missing input rather than trying to ingest
	require.Error(t, err)
}
