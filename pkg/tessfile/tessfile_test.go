package tessfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ExtractsLocusFromLastTagField(t *testing.T) {
	// Given: a well-formed tagged-line input
	input := "<verg. aen. 1.1>arma virumque cano\n<verg. aen. 1.2>Troiae qui primus ab oris\n"

	// When: parsing
	lines, warnings, err := Parse(strings.NewReader(input))

	// Then: each line's locus is the tag's last whitespace field
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, lines, 2)
	assert.Equal(t, "1.1", lines[0].Locus)
	assert.Equal(t, "verg. aen. 1.1", lines[0].Tag)
	assert.Equal(t, "arma virumque cano", lines[0].Content)
	assert.Equal(t, "1.2", lines[1].Locus)
}

func TestParse_SkipsBlankLines(t *testing.T) {
	// Given: an input with a blank line between two tagged lines
	input := "<verg. aen. 1.1>arma virumque cano\n\n<verg. aen. 1.2>Troiae qui\n"

	// When: parsing
	lines, warnings, err := Parse(strings.NewReader(input))

	// Then: the blank line produces neither a Line nor a Warning
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, lines, 2)
}

func TestParse_WarnsOnMalformedLineAndContinues(t *testing.T) {
	// Given: a malformed line (no tag) sandwiched between good ones
	input := "<verg. aen. 1.1>arma virumque cano\nnot a tagged line\n<verg. aen. 1.2>Troiae qui\n"

	// When: parsing
	lines, warnings, err := Parse(strings.NewReader(input))

	// Then: the malformed line is skipped with a warning, not a fatal error
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].LineNumber)
	require.Len(t, lines, 2)
}

func TestLine_Segments_SplitsOnIntraLineBreak(t *testing.T) {
	// Given: a line whose content holds an intra-line break marker
	line := Line{Content: "arma virumque cano / Troiae qui primus"}

	// When: splitting into segments
	segs := line.Segments()

	// Then: two trimmed segments result
	assert.Equal(t, []string{"arma virumque cano", "Troiae qui primus"}, segs)
}
