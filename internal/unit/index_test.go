package unit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/store"
)

func newTestIndex(t *testing.T) (*Index, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s), s
}

func saveTestText(t *testing.T, s *store.SQLiteStore) string {
	t.Helper()
	ctx := context.Background()
	text := &store.Text{ID: "aen-1", Language: "lat", Hash: "deadbeef"}
	require.NoError(t, s.SaveText(ctx, text))
	return text.ID
}

func TestIndex_PutAndUnitsOf_RoundTrips(t *testing.T) {
	// Given: a segmented text's line units
	idx, s := newTestIndex(t)
	ctx := context.Background()
	textID := saveTestText(t, s)

	spans := SegmentLines([]Token{
		tok("arma", "1.1", false),
		tok("virumque", "1.1", false),
		tok("cano", "1.1", true),
	})
	units := BuildUnits(spans, nil)

	// When: persisting and re-fetching
	require.NoError(t, idx.PutTextUnits(ctx, textID, store.UnitTypeLine, units))
	got, err := idx.UnitsOf(ctx, textID, store.UnitTypeLine)

	// Then: the units come back in ordinal order with their snippet intact
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "arma virumque cano", got[0].Snippet)
	require.Equal(t, []string{"1.1"}, got[0].Tags)
}

func TestIndex_PutTextUnits_ReplacesPriorUnitsOfSameType(t *testing.T) {
	// Given: a text already carrying line units
	idx, s := newTestIndex(t)
	ctx := context.Background()
	textID := saveTestText(t, s)
	first := BuildUnits(SegmentLines([]Token{tok("a", "1.1", false)}), nil)
	require.NoError(t, idx.PutTextUnits(ctx, textID, store.UnitTypeLine, first))

	// When: re-segmenting and re-putting
	second := BuildUnits(SegmentLines([]Token{tok("b", "1.1", false), tok("c", "1.2", false)}), nil)
	require.NoError(t, idx.PutTextUnits(ctx, textID, store.UnitTypeLine, second))

	// Then: only the second set of units remains
	got, err := idx.UnitsOf(ctx, textID, store.UnitTypeLine)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestIndex_PositionsFeatures(t *testing.T) {
	// Given: a unit with features assigned at two of its three positions
	u := store.Unit{
		Tokens: []int{0, 1, 2},
		Features: map[store.FeatureKind]map[int][]int{
			store.FeatureKindForm: {0: {5}, 2: {9, 10}},
		},
	}
	idx := &Index{}

	// When: reading positions_features for form
	pf := idx.PositionsFeatures(u, store.FeatureKindForm)

	// Then: only the positions holding features are reported, in order
	require.Len(t, pf, 2)
	require.Equal(t, 0, pf[0].Position)
	require.Equal(t, []int{5}, pf[0].Indices)
	require.Equal(t, 2, pf[1].Position)
	require.Equal(t, []int{9, 10}, pf[1].Indices)
}
