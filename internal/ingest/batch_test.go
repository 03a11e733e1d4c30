package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesserae-go/tesserae/internal/store"
)

func writeTessFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBatch_IngestsEachEntryAndSkipsDuplicateHash(t *testing.T) {
	// Given: two distinct source files and a pipeline
	ctx := context.Background()
	p, _ := newTestPipeline(t, stubTokenizer{})
	dir := t.TempDir()

	path1 := writeTessFile(t, dir, "aen1.tess", "<verg. aen. 1.1>arma virumque cano\n")
	path2 := writeTessFile(t, dir, "aen2.tess", "<verg. aen. 2.1>Troiae qui primus ab oris\n")

	entries := []BatchEntry{
		{ID: "aen-1", Author: "Vergil", Title: "Aeneid 1", Language: "latin", Path: path1, UnitTypes: []store.UnitType{store.UnitTypeLine}},
		{ID: "aen-2", Author: "Vergil", Title: "Aeneid 2", Language: "latin", Path: path2, UnitTypes: []store.UnitType{store.UnitTypeLine}},
	}

	// When: running the batch once
	outcomes := p.Batch(ctx, entries)

	// Then: both entries ingested cleanly
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.False(t, o.Skipped)
		assert.Equal(t, store.TextStatusDone, o.Text.Status)
	}

	// When: running the same batch a second time (e.g. a re-run after
	// a partial failure elsewhere)
	outcomes2 := p.Batch(ctx, entries)

	// Then: every entry is recognized as already ingested and skipped
	require.Len(t, outcomes2, 2)
	for _, o := range outcomes2 {
		require.NoError(t, o.Err)
		assert.True(t, o.Skipped)
	}
}

func TestBatch_ContinuesPastAMissingFile(t *testing.T) {
	// Given: one entry pointing at a file that does not exist, one valid
	ctx := context.Background()
	p, _ := newTestPipeline(t, stubTokenizer{})
	dir := t.TempDir()
	path := writeTessFile(t, dir, "ok.tess", "<verg. aen. 1.1>arma virumque cano\n")

	entries := []BatchEntry{
		{ID: "missing", Author: "Nobody", Title: "Nothing", Language: "latin", Path: filepath.Join(dir, "missing.tess")},
		{ID: "ok", Author: "Vergil", Title: "Aeneid", Language: "latin", Path: path, UnitTypes: []store.UnitType{store.UnitTypeLine}},
	}

	// When: running the batch
	outcomes := p.Batch(ctx, entries)

	// Then: the missing file produces an error without aborting the rest
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	require.NoError(t, outcomes[1].Err)
	assert.Equal(t, store.TextStatusDone, outcomes[1].Text.Status)
}
