package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/bigram"
	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/internal/unit"
	"github.com/tesserae-go/tesserae/pkg/tessfile"
)

// stubTokenizer lemmatizes by lowercasing and treats every word as its
// own synonym, so "semantic+lemmata" union testing has something to
// union without pulling in a real lemmatizer.
type stubTokenizer struct{}

func (stubTokenizer) Tokenize(ctx context.Context, language string, words []string) ([]WordFeatures, error) {
	out := make([]WordFeatures, len(words))
	for i, w := range words {
		lower := strings.ToLower(w)
		out[i] = WordFeatures{
			Form:     lower,
			Lemmata:  []string{lower},
			Semantic: []string{lower + "-syn"},
		}
	}
	return out, nil
}

type errTokenizer struct{}

func (errTokenizer) Tokenize(ctx context.Context, language string, words []string) ([]WordFeatures, error) {
	return nil, assert.AnError
}

func newTestPipeline(t *testing.T, tok Tokenizer) (*Pipeline, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	b, err := bigram.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return New(s, unit.New(s), feature.New(s), b, tok), s
}

func TestPipeline_Ingest_BuildsUnitsAndMarksDone(t *testing.T) {
	// Given: a two-line Latin text and a pipeline using the stub tokenizer
	ctx := context.Background()
	p, s := newTestPipeline(t, stubTokenizer{})

	lines, warnings, err := tessfile.Parse(strings.NewReader(
		"<verg. aen. 1.1>arma virumque cano\n<verg. aen. 1.2>Troiae qui primus ab oris.\n"))
	require.NoError(t, err)
	require.Empty(t, warnings)

	text := &store.Text{
		ID:        "aen-1",
		Language:  "latin",
		Author:    "Vergil",
		Title:     "Aeneid",
		Hash:      "hash-aen-1",
		UnitTypes: []store.UnitType{store.UnitTypeLine, store.UnitTypePhrase},
	}

	// When: ingesting
	got, err := p.Ingest(ctx, Request{Text: text, Lines: lines})

	// Then: the text ends up done, and both unit types were persisted
	require.NoError(t, err)
	assert.Equal(t, store.TextStatusDone, got.Status)

	lineUnits, err := s.UnitsOf(ctx, "aen-1", store.UnitTypeLine)
	require.NoError(t, err)
	assert.Len(t, lineUnits, 2)

	phraseUnits, err := s.UnitsOf(ctx, "aen-1", store.UnitTypePhrase)
	require.NoError(t, err)
	assert.NotEmpty(t, phraseUnits)
}

func TestPipeline_Ingest_InternsSemanticLemmataUnion(t *testing.T) {
	// Given: a one-line text
	ctx := context.Background()
	p, _ := newTestPipeline(t, stubTokenizer{})

	lines, _, err := tessfile.Parse(strings.NewReader("<hom. il. 1.1>Μῆνιν ἄειδε\n"))
	require.NoError(t, err)

	text := &store.Text{
		ID:        "il-1",
		Language:  "greek",
		Hash:      "hash-il-1",
		UnitTypes: []store.UnitType{store.UnitTypeLine},
	}

	// When: ingesting
	_, err = p.Ingest(ctx, Request{Text: text, Lines: lines})
	require.NoError(t, err)

	units, err := p.units.UnitsOf(ctx, "il-1", store.UnitTypeLine)
	require.NoError(t, err)
	require.Len(t, units, 1)

	// Then: the semantic+lemmata namespace carries both the lemma and its
	// synonym token at each position (2 words -> 2 union entries each,
	// since lemma != synonym in the stub tokenizer's output)
	byPos := units[0].Features[store.FeatureKindSemanticLemmata]
	require.Len(t, byPos, 2)
	for _, idxs := range byPos {
		assert.Len(t, idxs, 2)
	}
}

func TestPipeline_Ingest_TokenizerFailureMarksTextFailed(t *testing.T) {
	// Given: a pipeline wired with a tokenizer that always errors
	ctx := context.Background()
	p, s := newTestPipeline(t, errTokenizer{})

	lines, _, err := tessfile.Parse(strings.NewReader("<verg. aen. 1.1>arma virumque cano\n"))
	require.NoError(t, err)

	text := &store.Text{
		ID:        "aen-2",
		Language:  "latin",
		Hash:      "hash-aen-2",
		UnitTypes: []store.UnitType{store.UnitTypeLine},
	}

	// When: ingesting
	got, err := p.Ingest(ctx, Request{Text: text, Lines: lines})

	// Then: no fatal Go error propagates, but the persisted text is
	// recorded as failed with the tokenizer's error as its message
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.TextStatusFailed, got.Status)
	assert.Contains(t, got.Message, "tokenizer failed")

	reread, err := s.GetText(ctx, "aen-2")
	require.NoError(t, err)
	assert.Equal(t, store.TextStatusFailed, reread.Status)
}
