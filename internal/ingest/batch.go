package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/pkg/tessfile"
)

// BatchEntry is one text queued for a mass ingest run, grounded on the
// ingestion file schema of the original mass_ingest CLI (title, author,
// language, path, year).
type BatchEntry struct {
	ID        string
	Author    string
	Title     string
	Language  string
	Year      int
	IsProse   bool
	Path      string
	UnitTypes []store.UnitType
}

// BatchOutcome reports what happened to one BatchEntry.
type BatchOutcome struct {
	Entry   BatchEntry
	Text    *store.Text
	Skipped bool // already ingested, recognized by content hash
	Err     error
}

// Batch ingests a directory's worth of entries sequentially, skipping
// any whose content hash already matches an ingested Text rather than
// failing the run — mirroring mass_ingest.py's per-text try/except loop,
// which logs and moves on instead of aborting the whole batch (SPEC_FULL
// §10.2 "Multi-text mass ingest").
func (p *Pipeline) Batch(ctx context.Context, entries []BatchEntry) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(entries))
	for _, entry := range entries {
		slog.Info("mass ingest: starting", slog.String("author", entry.Author), slog.String("title", entry.Title))

		outcome, err := p.ingestEntry(ctx, entry)
		if err != nil {
			slog.Error("mass ingest: failed", slog.String("author", entry.Author), slog.String("title", entry.Title), slog.Any("error", err))
			outcomes = append(outcomes, BatchOutcome{Entry: entry, Err: err})
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (p *Pipeline) ingestEntry(ctx context.Context, entry BatchEntry) (BatchOutcome, error) {
	raw, err := os.ReadFile(entry.Path)
	if err != nil {
		return BatchOutcome{}, tesserr.Ingest("failed to read input file", err)
	}

	hash := contentHash(raw)
	if existing, err := p.store.GetTextByHash(ctx, hash); err == nil && existing != nil {
		slog.Info("mass ingest: skipping already-ingested text",
			slog.String("author", entry.Author), slog.String("title", entry.Title))
		return BatchOutcome{Entry: entry, Text: existing, Skipped: true}, nil
	}

	lines, warnings, err := tessfile.Parse(bytes.NewReader(raw))
	if err != nil {
		return BatchOutcome{}, tesserr.Ingest("failed to parse input file", err)
	}
	for _, w := range warnings {
		slog.Warn("mass ingest: malformed line", slog.String("path", entry.Path), slog.String("detail", w.String()))
	}

	text := &store.Text{
		ID:        entry.ID,
		Language:  entry.Language,
		Author:    entry.Author,
		Title:     entry.Title,
		Year:      entry.Year,
		IsProse:   entry.IsProse,
		Hash:      hash,
		Path:      entry.Path,
		UnitTypes: entry.UnitTypes,
	}

	got, err := p.Ingest(ctx, Request{Text: text, Lines: lines})
	if err != nil {
		return BatchOutcome{}, err
	}
	return BatchOutcome{Entry: entry, Text: got}, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
