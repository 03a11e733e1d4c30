package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tesserae-go/tesserae/internal/ingest"
	"github.com/tesserae-go/tesserae/internal/output"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/pkg/tessfile"
)

type ingestOptions struct {
	id        string
	author    string
	title     string
	language  string
	year      int
	prose     bool
	unitTypes []string
	manifest  string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest a tagged text, or a manifest of many, into the engine",
		Long: `ingest tokenizes a .tess-format input file through the configured
external normalizer service, interns its features, segments it into the
requested unit types, and records its shared-feature bigrams.

A single file is ingested with --id/--author/--title/--language set on
the command line. A batch of texts is ingested from a YAML manifest
passed via --manifest: a top-level "texts" list whose entries carry id,
author, title, language, year, prose, path and unit_types (default line
and phrase). Already-ingested texts (matched by content hash) are
skipped rather than re-run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.manifest != "" {
				return runIngestBatch(cmd, opts)
			}
			if len(args) != 1 {
				return fmt.Errorf("ingest requires a path argument, or --manifest for batch ingest")
			}
			return runIngestOne(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Text ID (required for a single-file ingest)")
	cmd.Flags().StringVar(&opts.author, "author", "", "Author name")
	cmd.Flags().StringVar(&opts.title, "title", "", "Text title")
	cmd.Flags().StringVar(&opts.language, "language", "", "Language (e.g. latin, greek)")
	cmd.Flags().IntVar(&opts.year, "year", 0, "Composition year (negative for BCE)")
	cmd.Flags().BoolVar(&opts.prose, "prose", false, "Mark the text as prose rather than verse")
	cmd.Flags().StringSliceVar(&opts.unitTypes, "unit-types", []string{"line", "phrase"}, "Unit types to segment into (line, phrase)")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Path to a YAML batch manifest instead of a single file")

	return cmd
}

func parseUnitTypes(raw []string) ([]store.UnitType, error) {
	types := make([]store.UnitType, 0, len(raw))
	for _, r := range raw {
		switch store.UnitType(strings.ToLower(strings.TrimSpace(r))) {
		case store.UnitTypeLine:
			types = append(types, store.UnitTypeLine)
		case store.UnitTypePhrase:
			types = append(types, store.UnitTypePhrase)
		default:
			return nil, fmt.Errorf("unknown unit type %q (expected line or phrase)", r)
		}
	}
	return types, nil
}

func runIngestOne(cmd *cobra.Command, path string, opts ingestOptions) error {
	if opts.id == "" {
		return fmt.Errorf("--id is required")
	}
	if opts.language == "" {
		return fmt.Errorf("--language is required")
	}
	unitTypes, err := parseUnitTypes(opts.unitTypes)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())

	return withEngine(func(e *engine) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()

		lines, warnings, err := tessfile.Parse(f)
		if err != nil {
			return fmt.Errorf("failed to parse input file: %w", err)
		}
		for _, w := range warnings {
			out.Warningf("line %d: %s", w.LineNumber, w.Message)
		}

		text := &store.Text{
			ID:        opts.id,
			Language:  opts.language,
			Author:    opts.author,
			Title:     opts.title,
			Year:      opts.year,
			IsProse:   opts.prose,
			Path:      path,
			UnitTypes: unitTypes,
		}

		ctx := cmd.Context()
		var got *store.Text
		jobErr := e.ingests.Submit(ctx, func(ctx context.Context) error {
			var runErr error
			got, runErr = e.pipeline.Ingest(ctx, ingest.Request{Text: text, Lines: lines})
			return runErr
		})
		if jobErr != nil {
			return fmt.Errorf("ingest failed: %w", jobErr)
		}

		if got.Status == store.TextStatusFailed {
			out.Errorf("ingest failed for %s: %s", got.ID, got.Message)
			return fmt.Errorf("ingest failed: %s", got.Message)
		}
		out.Successf("ingested %s (%s, %s) as %s", got.ID, got.Author, got.Title, got.Status)
		return nil
	})
}

// manifestEntry is one row of a batch ingest manifest.
type manifestEntry struct {
	ID        string   `yaml:"id"`
	Author    string   `yaml:"author"`
	Title     string   `yaml:"title"`
	Language  string   `yaml:"language"`
	Year      int      `yaml:"year"`
	Prose     bool     `yaml:"prose"`
	Path      string   `yaml:"path"`
	UnitTypes []string `yaml:"unit_types"`
}

type manifest struct {
	Texts []manifestEntry `yaml:"texts"`
}

func runIngestBatch(cmd *cobra.Command, opts ingestOptions) error {
	data, err := os.ReadFile(opts.manifest)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	out := output.New(cmd.OutOrStdout())

	return withEngine(func(e *engine) error {
		entries := make([]ingest.BatchEntry, 0, len(m.Texts))
		for _, t := range m.Texts {
			unitTypeStrs := t.UnitTypes
			if len(unitTypeStrs) == 0 {
				unitTypeStrs = []string{"line", "phrase"}
			}
			unitTypes, err := parseUnitTypes(unitTypeStrs)
			if err != nil {
				return fmt.Errorf("manifest entry %q: %w", t.ID, err)
			}
			entries = append(entries, ingest.BatchEntry{
				ID: t.ID, Author: t.Author, Title: t.Title, Language: t.Language,
				Year: t.Year, IsProse: t.Prose, Path: t.Path, UnitTypes: unitTypes,
			})
		}

		var outcomes []ingest.BatchOutcome
		jobErr := e.ingests.Submit(cmd.Context(), func(ctx context.Context) error {
			outcomes = e.pipeline.Batch(ctx, entries)
			return nil
		})
		if jobErr != nil {
			return fmt.Errorf("batch ingest failed: %w", jobErr)
		}
		failures := 0
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				failures++
				out.Errorf("%s: %s", o.Entry.ID, o.Err)
			case o.Skipped:
				out.Status("", fmt.Sprintf("%s: already ingested, skipped", o.Entry.ID))
			default:
				out.Successf("%s: ingested as %s", o.Entry.ID, o.Text.Status)
			}
		}
		slog.Info("batch ingest complete", slog.Int("total", len(entries)), slog.Int("failures", failures))
		if failures > 0 {
			return fmt.Errorf("%d of %d texts failed to ingest", failures, len(entries))
		}
		return nil
	})
}
