package freq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s), s
}

func seedFeatureCounts(t *testing.T, s *store.SQLiteStore, textID string, counts map[int]int) {
	t.Helper()
	ctx := context.Background()
	for idx, c := range counts {
		require.NoError(t, s.IncrementFeatureCount(ctx, "lat", store.FeatureKindForm, idx, textID, c))
	}
}

func TestCorpusInverseFrequency(t *testing.T) {
	// Given: a corpus where feature 0 occurs 8 times out of 10 total
	svc, s := newTestService(t)
	seedFeatureCounts(t, s, "text-a", map[int]int{0: 8, 1: 2})

	// When: computing the corpus inverse frequency of feature 0
	ifreq, err := svc.CorpusInverseFrequency(context.Background(), "lat", store.FeatureKindForm, 0)

	// Then: it equals total / count = 10 / 8
	require.NoError(t, err)
	assert.InDelta(t, 10.0/8.0, ifreq, 1e-9)
}

func TestCorpusInverseFrequency_CachesUntilInvalidated(t *testing.T) {
	// Given: an initial corpus snapshot computed and cached
	svc, s := newTestService(t)
	ctx := context.Background()
	seedFeatureCounts(t, s, "text-a", map[int]int{0: 1})
	first, err := svc.CorpusInverseFrequency(ctx, "lat", store.FeatureKindForm, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first)

	// When: more occurrences are recorded without invalidating
	seedFeatureCounts(t, s, "text-b", map[int]int{0: 100, 1: 100})
	stale, err := svc.CorpusInverseFrequency(ctx, "lat", store.FeatureKindForm, 0)
	require.NoError(t, err)

	// Then: the cached value is returned unchanged
	assert.Equal(t, first, stale)

	// When: the cache is invalidated and recomputed
	svc.Invalidate("lat", store.FeatureKindForm)
	fresh, err := svc.CorpusInverseFrequency(ctx, "lat", store.FeatureKindForm, 0)
	require.NoError(t, err)

	// Then: it reflects the new totals
	assert.NotEqual(t, first, fresh)
}

func TestTextsInverseFrequency(t *testing.T) {
	// Given: a text with feature 0 occurring 4 times, 20 word positions total
	svc, s := newTestService(t)
	seedFeatureCounts(t, s, "text-a", map[int]int{0: 4})

	// When: computing the texts-basis inverse frequency
	ifreq, err := svc.TextsInverseFrequency(context.Background(), "lat", store.FeatureKindForm, 0, "text-a", 20)

	// Then: it equals total word positions / occurrences = 20 / 4
	require.NoError(t, err)
	assert.Equal(t, 5.0, ifreq)
}

func TestTextsInverseFrequency_ZeroCountIsUndefined(t *testing.T) {
	// Given: a text with no occurrences recorded for feature 7
	svc, _ := newTestService(t)

	// When: computing its texts-basis inverse frequency
	_, err := svc.TextsInverseFrequency(context.Background(), "lat", store.FeatureKindForm, 7, "text-a", 20)

	// Then: undefined frequency is reported, not a fabricated value
	require.Error(t, err)
	assert.Equal(t, tesserr.ErrCodeUndefinedFrequency, tesserr.GetCode(err))
}

func TestTopNByFrequency_OrdersByCountDescIndexAsc(t *testing.T) {
	// Given: features with distinct and tied counts
	svc, s := newTestService(t)
	seedFeatureCounts(t, s, "text-a", map[int]int{0: 5, 1: 10, 2: 10, 3: 1})

	// When: requesting the top 3 most frequent
	top, err := svc.TopNByFrequency(context.Background(), "lat", store.FeatureKindForm, 3)

	// Then: ties break by ascending index, and the result is exactly N long
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 0}, top)
}

func TestInverseFrequency_RejectsUnknownBasis(t *testing.T) {
	// Given: a service
	svc, _ := newTestService(t)

	// When: dispatching with an invalid basis
	_, err := svc.InverseFrequency(context.Background(), store.FrequencyBasis("nonsense"), "lat", store.FeatureKindForm, 0, "text-a", 10)

	// Then: a validation error is returned
	require.Error(t, err)
	assert.Equal(t, tesserr.ErrCodeInvalidInput, tesserr.GetCode(err))
}
