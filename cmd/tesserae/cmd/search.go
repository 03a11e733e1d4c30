package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tesserae-go/tesserae/internal/output"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/pkg/export"
)

type searchOptions struct {
	sourceText, sourceUnit string
	targetText, targetUnit string
	method                 string
	feature                string
	stopwordCount          int
	freqBasis              string
	maxDistance            int
	distanceBasis          string
	minScore               float64
	sortBy                 string
	sortOrder              string
	page                   int
	perPage                int
	markup                 string
	format                 string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a vanilla or Greek-to-Latin search between two texts",
		Long: `search runs a search between a source and target text's units,
recovering shared-feature unit pairs, scoring them with the Tesserae
log-score, and gating on --max-distance/--min-score (spec.md §4.4).

Results are cached by search parameters: re-running the same search
returns the already-computed result rather than recomputing it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sourceText, "source", "", "Source text ID (required)")
	cmd.Flags().StringVar(&opts.sourceUnit, "source-unit", "line", "Source unit type (line, phrase)")
	cmd.Flags().StringVar(&opts.targetText, "target", "", "Target text ID (required)")
	cmd.Flags().StringVar(&opts.targetUnit, "target-unit", "line", "Target unit type (line, phrase)")
	cmd.Flags().StringVar(&opts.method, "method", "vanilla", "Search type: vanilla or greek_to_latin")
	cmd.Flags().StringVar(&opts.feature, "feature", "lemmata", "Feature kind to match on (form, lemmata, sound, semantic, semantic+lemmata)")
	cmd.Flags().IntVar(&opts.stopwordCount, "stopword-count", 10, "Auto-derive this many top-frequency stopwords from the frequency basis (corpus, or both texts pooled)")
	cmd.Flags().StringVar(&opts.freqBasis, "freq-basis", "corpus", "Inverse frequency basis: corpus or texts")
	cmd.Flags().IntVar(&opts.maxDistance, "max-distance", 10, "Maximum span/frequency distance gate")
	cmd.Flags().StringVar(&opts.distanceBasis, "distance-basis", "frequency", "Distance basis: frequency or span")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Minimum Tesserae log-score gate")
	cmd.Flags().StringVar(&opts.sortBy, "sort-by", "score", "Sort by: score, source_tag, target_tag, matched_features")
	cmd.Flags().StringVar(&opts.sortOrder, "sort-order", "descending", "Sort order: ascending or descending")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number (1-indexed)")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 100, "Results per page")
	cmd.Flags().StringVar(&opts.markup, "markup", "", "Markup to wrap matched words with in snippets, e.g. **")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")

	return cmd
}

func parseFeatureKind(raw string) (store.FeatureKind, error) {
	switch store.FeatureKind(strings.ToLower(raw)) {
	case store.FeatureKindForm, store.FeatureKindLemmata, store.FeatureKindSound,
		store.FeatureKindSemantic, store.FeatureKindSemanticLemmata:
		return store.FeatureKind(strings.ToLower(raw)), nil
	default:
		return "", fmt.Errorf("unknown feature kind %q", raw)
	}
}

func buildSearchParams(opts searchOptions) (store.SearchType, store.SearchParams, error) {
	var searchType store.SearchType
	switch strings.ToLower(opts.method) {
	case "vanilla":
		searchType = store.SearchTypeVanilla
	case "greek_to_latin":
		searchType = store.SearchTypeGreekToLatin
	default:
		return "", store.SearchParams{}, fmt.Errorf("unknown method %q (expected vanilla or greek_to_latin)", opts.method)
	}

	sourceUnit, err := parseUnitTypes([]string{opts.sourceUnit})
	if err != nil {
		return "", store.SearchParams{}, err
	}
	targetUnit, err := parseUnitTypes([]string{opts.targetUnit})
	if err != nil {
		return "", store.SearchParams{}, err
	}
	kind, err := parseFeatureKind(opts.feature)
	if err != nil {
		return "", store.SearchParams{}, err
	}

	params := store.SearchParams{
		Source: store.TextRef{TextID: opts.sourceText, UnitType: sourceUnit[0]},
		Target: store.TextRef{TextID: opts.targetText, UnitType: targetUnit[0]},
		Method: store.Method{
			Name:          searchType,
			Feature:       kind,
			StopwordCount: opts.stopwordCount,
			FreqBasis:     store.FrequencyBasis(strings.ToLower(opts.freqBasis)),
			MaxDistance:   opts.maxDistance,
			DistanceBasis: store.DistanceBasis(strings.ToLower(opts.distanceBasis)),
			MinScore:      opts.minScore,
		},
	}
	return searchType, params, nil
}

func runSearch(cmd *cobra.Command, opts searchOptions) error {
	if opts.sourceText == "" || opts.targetText == "" {
		return fmt.Errorf("--source and --target are required")
	}
	searchType, params, err := buildSearchParams(opts)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())

	return withEngine(func(e *engine) error {
		ctx := cmd.Context()
		var sr *store.Search
		jobErr := e.searches.Submit(ctx, func(ctx context.Context) error {
			var runErr error
			sr, runErr = e.lc.Execute(ctx, searchType, params)
			return runErr
		})
		if jobErr != nil {
			return fmt.Errorf("search failed: %w", jobErr)
		}
		if sr.Status == store.SearchStatusFailed {
			return fmt.Errorf("search failed: %s", sr.Message)
		}

		matches, total, err := e.lc.Retrieve(ctx, sr.ID, opts.sortBy, opts.sortOrder, opts.perPage, opts.page)
		if err != nil {
			return fmt.Errorf("failed to retrieve results: %w", err)
		}
		if opts.sortBy != "score" {
			export.SortMatches(matches, opts.sortBy, opts.sortOrder)
		}

		firstIndex := (opts.page-1)*opts.perPage + 1
		rows := export.BuildRows(matches, firstIndex, sr.MaxScore, opts.markup)
		return printRows(cmd, out, opts.format, total, rows)
	})
}

func printRows(cmd *cobra.Command, out *output.Writer, format string, total int, rows []export.Row) error {
	if len(rows) == 0 {
		out.Status("", "no matches found")
		return nil
	}

	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Total int          `json:"total"`
			Rows  []export.Row `json:"rows"`
		}{Total: total, Rows: rows})
	default:
		out.Statusf("", "%d matches (showing %d):", total, len(rows))
		out.Newline()
		for _, r := range rows {
			out.Statusf("", "%d. %s <> %s (score %.2f)", r.Index, r.TargetLocus, r.SourceLocus, r.NormalizedScore)
			out.Status("", "   target: "+r.TargetSnippet)
			out.Status("", "   source: "+r.SourceSnippet)
			out.Status("", "   shared: "+r.MatchedFeatures)
			out.Newline()
		}
		return nil
	}
}
